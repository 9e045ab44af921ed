package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("invalid command")

// ValidationError reports which request field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Request is an operator's command intent.
type Request struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Command is the normalized payload published to the device fleet.
type Command struct {
	Type  string `json:"type"`
	State State  `json:"state"`
}

// State is either "on"/"off" or an integer level.
type State struct {
	text    string
	level   int
	isLevel bool
}

func StateOn() State  { return State{text: "on"} }
func StateOff() State { return State{text: "off"} }

// Level returns an integer state for level devices.
func Level(n int) State { return State{level: n, isLevel: true} }

func (s State) IsLevel() bool { return s.isLevel }

func (s State) String() string {
	if s.isLevel {
		return strconv.Itoa(s.level)
	}

	return s.text
}

func (s State) MarshalJSON() ([]byte, error) {
	if s.isLevel {
		return []byte(strconv.Itoa(s.level)), nil
	}

	if s.text == "" {
		return nil, errors.New("empty command state")
	}

	return []byte(strconv.Quote(s.text)), nil
}

// Normalize validates req against the vocabulary and converts it to the firmware wire schema.
func (v *Vocabulary) Normalize(req Request) (Command, error) {
	if strings.TrimSpace(req.Type) == "" {
		return Command{}, &ValidationError{Field: "type", Reason: "is required"}
	}

	device, ok := v.Lookup(req.Type)
	if !ok {
		return Command{}, &ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("unknown device %q, expected one of %s", req.Type, strings.Join(v.Names(), ", ")),
		}
	}

	if req.Value == nil {
		return Command{}, &ValidationError{Field: "value", Reason: "is required"}
	}

	var (
		state State
		err   error
	)

	switch device.Kind {
	case KindLevel:
		state, err = levelState(device, req.Value)
	default:
		state, err = switchState(req.Value)
	}

	if err != nil {
		return Command{}, err
	}

	return Command{Type: device.Name, State: state}, nil
}

func switchState(value any) (State, error) {
	invalid := &ValidationError{Field: "value", Reason: fmt.Sprintf("%v is not an on/off value", value)}

	switch v := value.(type) {
	case bool:
		if v {
			return StateOn(), nil
		}

		return StateOff(), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on", "true", "1", "yes":
			return StateOn(), nil
		case "off", "false", "0", "no":
			return StateOff(), nil
		}
	default:
		if n, ok := integer(v); ok {
			switch n {
			case 1:
				return StateOn(), nil
			case 0:
				return StateOff(), nil
			}
		}
	}

	return State{}, invalid
}

func levelState(device Device, value any) (State, error) {
	var (
		n  int
		ok bool
	)

	switch v := value.(type) {
	case bool:
		n, ok = device.Min, true
		if v {
			n = device.Max
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(v))

		switch s {
		case "on":
			n, ok = device.Max, true
		case "off":
			n, ok = device.Min, true
		default:
			parsed, err := strconv.Atoi(s)
			n, ok = parsed, err == nil
		}
	default:
		n, ok = integer(v)
	}

	if !ok {
		return State{}, &ValidationError{Field: "value", Reason: fmt.Sprintf("%v is not an integer level", value)}
	}

	if n < device.Min || n > device.Max {
		return State{}, &ValidationError{Field: "value", Reason: fmt.Sprintf("%d is outside [%d, %d]", n, device.Min, device.Max)}
	}

	return Level(n), nil
}

// integer accepts Go integers and integral float64 values as decoded from JSON.
func integer(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}
