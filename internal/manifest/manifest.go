// Package manifest loads drawings described in TOML, builds the associative
// network for them, and keeps a live session in step with later edits of
// the file.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// Version is the manifest and array format version this build reads.
const Version = 1

// Sentinel errors for manifest loading and validation.
var (
	// ErrMissingField indicates a required field (e.g. name, kind) is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrDuplicateName indicates two entities, arrays or overrides share a name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownRef indicates a reference to an entity or array that does not exist.
	ErrUnknownRef = errors.New("unknown reference")
	// ErrInvalidKind indicates an unrecognized entity or array kind.
	ErrInvalidKind = errors.New("invalid kind")
	// ErrSharedSource indicates an entity is consumed by more than one array.
	ErrSharedSource = errors.New("entity used as a source more than once")
)

// Manifest is the top-level drawing description.
type Manifest struct {
	Version   int            `toml:"version"`
	Name      string         `toml:"name"`
	Entities  []EntitySpec   `toml:"entities"`
	Arrays    []ArraySpec    `toml:"arrays"`
	Overrides []OverrideSpec `toml:"overrides"`
}

// EntitySpec describes one model space entity. Which fields apply depends
// on Kind: line uses Start and End, circle uses Center and Radius, polyline
// uses Points and Closed. At translates the entity.
type EntitySpec struct {
	Name   string      `toml:"name"`
	Kind   string      `toml:"kind"`
	Start  []float64   `toml:"start,omitempty"`
	End    []float64   `toml:"end,omitempty"`
	Center []float64   `toml:"center,omitempty"`
	Radius float64     `toml:"radius,omitempty"`
	Points [][]float64 `toml:"points,omitempty"`
	Closed bool        `toml:"closed,omitempty"`
	At     []float64   `toml:"at,omitempty"`
}

// Entity kinds.
const (
	EntityLine     = "line"
	EntityCircle   = "circle"
	EntityPolyline = "polyline"
)

// ArraySpec describes an associative array. Sources name entities or
// earlier arrays. Params holds the shape parameters by their action
// parameter names; vectors are written as three-element arrays.
type ArraySpec struct {
	Name     string         `toml:"name"`
	Version  int            `toml:"version,omitempty"`
	Kind     string         `toml:"kind"`
	Sources  []string       `toml:"sources"`
	Base     []float64      `toml:"base,omitempty"`
	Path     string         `toml:"path,omitempty"`
	PathLoss string         `toml:"path_loss,omitempty"`
	Params   map[string]any `toml:"params,omitempty"`
}

// Array kinds as written in manifests.
const (
	KindRectangular = "rectangular"
	KindPolar       = "polar"
	KindPath        = "path"
)

// OverrideSpec replaces items of an array with other content. Items are
// [item, row, level] triples.
type OverrideSpec struct {
	Name      string    `toml:"name"`
	Version   int       `toml:"version,omitempty"`
	Array     string    `toml:"array"`
	Items     [][]int32 `toml:"items"`
	Sources   []string  `toml:"sources"`
	BasePoint []float64 `toml:"base_point,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if verrs := Validate(m); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i := range verrs {
			errs[i] = &verrs[i]
		}
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Decode decodes a manifest without validating it. A version other than
// Version is a hard failure wrapping assoc.ErrDecodeVersion; an array with
// an unreadable version is kept and later built as a proxy.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("%w: manifest version %d (want %d)", assoc.ErrDecodeVersion, m.Version, Version)
	}
	for i := range m.Arrays {
		if m.Arrays[i].Version == 0 {
			m.Arrays[i].Version = Version
		}
	}
	for i := range m.Overrides {
		if m.Overrides[i].Version == 0 {
			m.Overrides[i].Version = Version
		}
	}
	return &m, nil
}

// Entity returns the entity spec called name.
func (m *Manifest) Entity(name string) (EntitySpec, bool) {
	for _, e := range m.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntitySpec{}, false
}

// Array returns the array spec called name.
func (m *Manifest) Array(name string) (ArraySpec, bool) {
	for _, a := range m.Arrays {
		if a.Name == name {
			return a, true
		}
	}
	return ArraySpec{}, false
}

// Override returns the override spec called name.
func (m *Manifest) Override(name string) (OverrideSpec, bool) {
	for _, o := range m.Overrides {
		if o.Name == name {
			return o, true
		}
	}
	return OverrideSpec{}, false
}

// consumed returns the entities that arrays or overrides copy as sources.
func (m *Manifest) consumed() map[string]bool {
	out := make(map[string]bool)
	for _, a := range m.Arrays {
		for _, src := range a.Sources {
			if _, ok := m.Entity(src); ok {
				out[src] = true
			}
		}
	}
	for _, o := range m.Overrides {
		for _, src := range o.Sources {
			if _, ok := m.Entity(src); ok {
				out[src] = true
			}
		}
	}
	return out
}

// geometryEqual reports whether two entity specs describe the same shape.
func (e EntitySpec) geometryEqual(o EntitySpec) bool {
	return reflect.DeepEqual(e, o)
}

// sameWiring reports whether two array specs differ only in base and
// params, which a live session can apply as edits.
func (a ArraySpec) sameWiring(o ArraySpec) bool {
	return a.Kind == o.Kind && a.Version == o.Version && a.Path == o.Path &&
		a.PathLoss == o.PathLoss && reflect.DeepEqual(a.Sources, o.Sources)
}

func vec(v []float64) geom.Vec {
	var out geom.Vec
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	return out
}

// paramValue converts a decoded TOML value into the form action parameters
// use: numeric arrays become vectors.
func paramValue(v any) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return v, nil
	}
	if len(list) < 2 || len(list) > 3 {
		return nil, fmt.Errorf("vector needs 2 or 3 components, got %d", len(list))
	}
	xs := make([]float64, len(list))
	for i, c := range list {
		switch n := c.(type) {
		case int64:
			xs[i] = float64(n)
		case float64:
			xs[i] = n
		default:
			return nil, fmt.Errorf("vector component %d is %T", i, c)
		}
	}
	return vec(xs), nil
}
