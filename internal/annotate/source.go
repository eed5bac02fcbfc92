package annotate

import (
	"errors"
	"fmt"
)

// Source looks up precomputed annotations for one variant allele.
// Lookup never fails: a miss of any kind is an empty (or nil) map.
type Source interface {
	Name() string       // identifying label, also the output field prefix
	Fields() []FieldDef // output fields this source may populate, already prefixed
	Lookup(q Query) map[string]string
	Close() error
}

// Describer is implemented by sources that can report what their output
// values depend on. Result caches use it to detect changed data.
type Describer interface {
	Files() []string             // data and index files read by the source
	Settings() map[string]string // decode options that change output values
}

// FieldDef describes an output field provided by a source.
type FieldDef struct {
	Name        string // prefixed output name, e.g. "RegionAnnot_CLNSIG"
	Description string // human-readable description
}

// FieldName returns the namespaced output name for a source field.
func FieldName(label, field string) string {
	return label + "_" + field
}

// ConfigError reports a fatal misconfiguration detected while constructing a
// source: missing files or tools, incompatible schemas, unusable parameters.
type ConfigError struct {
	Source  string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: configuration error: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: configuration error: %s", e.Source, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
