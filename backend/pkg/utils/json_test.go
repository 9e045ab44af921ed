package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type jsonProbe struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestFromJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    jsonProbe
		wantErr bool
	}{
		{name: "valid json", input: `{"name":"fan","value":1}`, want: jsonProbe{Name: "fan", Value: 1}},
		{name: "empty input", input: ``, want: jsonProbe{}},
		{name: "truncated", input: `{"name":"fan",`, wantErr: true},
		{name: "unknown field", input: `{"name":"fan","state":"on"}`, wantErr: true},
		{name: "extra data", input: `{"name":"fan"}{"name":"humidifier"}`, wantErr: true},
		{name: "trailing whitespace", input: `{"name":"fan","value":1}  ` + "\n", want: jsonProbe{Name: "fan", Value: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FromJSON[jsonProbe]([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr && got != tt.want {
				t.Errorf("FromJSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromJSONStreamExtraData(t *testing.T) {
	t.Parallel()

	_, err := FromJSONStream[jsonProbe](strings.NewReader(`{"name":"a"} {"name":"b"}`))

	var extra *ExtraDataAfterJSONError
	if !errors.As(err, &extra) {
		t.Fatalf("FromJSONStream() error = %v, want ExtraDataAfterJSONError", err)
	}

	if extra.Error() != "extra data after JSON object" {
		t.Errorf("Error() = %q", extra.Error())
	}
}

func TestFromJSONStreamEmpty(t *testing.T) {
	t.Parallel()

	if _, err := FromJSONStream[jsonProbe](strings.NewReader("")); err == nil {
		t.Error("FromJSONStream() with empty reader should return error")
	}
}

func TestToJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "struct", input: jsonProbe{Name: "fan", Value: 1}, want: `{"name":"fan","value":1}`},
		{name: "nil", input: nil, want: "null"},
		{name: "html not escaped", input: map[string]string{"status": "<online>"}, want: `{"status":"<online>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ToJSON(tt.input)
			if err != nil {
				t.Fatalf("ToJSON() error = %v", err)
			}

			if string(got) != tt.want {
				t.Errorf("ToJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToJSONIndent(t *testing.T) {
	t.Parallel()

	got, err := ToJSONIndent(jsonProbe{Name: "fan", Value: 1})
	if err != nil {
		t.Fatalf("ToJSONIndent() error = %v", err)
	}

	want := "{\n  \"name\": \"fan\",\n  \"value\": 1\n}"
	if string(got) != want {
		t.Errorf("ToJSONIndent() = %q, want %q", got, want)
	}
}

func TestToJSONStream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := ToJSONStream(&buf, map[string]string{"html": "<b>"}); err != nil {
		t.Fatalf("ToJSONStream() error = %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != `{"html":"<b>"}` {
		t.Errorf("ToJSONStream() = %s", got)
	}
}
