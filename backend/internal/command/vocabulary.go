package command

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceKind selects the normalization rule applied to a device's command value.
type DeviceKind string

const (
	// KindSwitch devices accept on/off style values and receive "on" or "off".
	KindSwitch DeviceKind = "switch"
	// KindLevel devices accept an integer within [Min, Max] and receive that integer.
	KindLevel DeviceKind = "level"
)

// Device is one entry of the command vocabulary.
type Device struct {
	// Name is the identifier sent to the firmware in the "type" field.
	Name    string     `yaml:"-"`
	Kind    DeviceKind `yaml:"kind"`
	Aliases []string   `yaml:"aliases,omitempty"`
	Min     int        `yaml:"min,omitempty"`
	Max     int        `yaml:"max,omitempty"`
}

// Vocabulary is the closed set of devices commands may target.
type Vocabulary struct {
	devices map[string]Device
	// lookup maps names and aliases to device names
	lookup map[string]string
}

type vocabularyFile struct {
	Devices map[string]Device `yaml:"devices"`
}

// defaultVocabulary matches the firmware's command handler: both actuators take "on"/"off" and the
// relay driving the humidifier is still addressed as "relay" by older dashboards.
const defaultVocabulary = `
devices:
  humidifier:
    kind: switch
    aliases: [relay]
  fan:
    kind: switch
`

// DefaultVocabulary returns the built-in device set.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(strings.NewReader(defaultVocabulary))
	if err != nil {
		panic(fmt.Sprintf("built-in vocabulary is invalid: %v", err))
	}

	return v
}

// LoadVocabulary reads a YAML vocabulary file. An empty path returns the built-in vocabulary.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	v, err := ParseVocabulary(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	return v, nil
}

// ParseVocabulary decodes and validates a YAML vocabulary.
func ParseVocabulary(r io.Reader) (*Vocabulary, error) {
	var file vocabularyFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("vocabulary is empty")
		}

		return nil, err
	}

	if len(file.Devices) == 0 {
		return nil, errors.New("vocabulary defines no devices")
	}

	v := &Vocabulary{
		devices: make(map[string]Device, len(file.Devices)),
		lookup:  make(map[string]string),
	}

	for rawName, d := range file.Devices {
		name := normalizeName(rawName)
		if name == "" {
			return nil, errors.New("device name must not be empty")
		}

		d.Name = name

		switch d.Kind {
		case KindSwitch:
		case KindLevel:
			if d.Min >= d.Max {
				return nil, fmt.Errorf("device %s: min (%d) must be lower than max (%d)", name, d.Min, d.Max)
			}
		default:
			return nil, fmt.Errorf("device %s: unknown kind %q", name, d.Kind)
		}

		for _, key := range append([]string{name}, d.Aliases...) {
			key = normalizeName(key)
			if key == "" {
				return nil, fmt.Errorf("device %s: empty alias", name)
			}

			if other, exists := v.lookup[key]; exists && other != name {
				return nil, fmt.Errorf("device %s: name %q already used by %s", name, key, other)
			}

			v.lookup[key] = name
		}

		v.devices[name] = d
	}

	return v, nil
}

// Lookup resolves a device name or alias, ignoring case and surrounding space.
func (v *Vocabulary) Lookup(name string) (Device, bool) {
	canonical, ok := v.lookup[normalizeName(name)]
	if !ok {
		return Device{}, false
	}

	return v.devices[canonical], true
}

// Names returns the canonical device names, sorted.
func (v *Vocabulary) Names() []string {
	names := make([]string, 0, len(v.devices))
	for name := range v.devices {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
