package assoc

import (
	"fmt"
	"sort"
)

// Derivation computes a parameter value from other parameters.
type Derivation func(ps *Parameters) (any, error)

// Parameters is the named value set of an action. A parameter is either a
// literal value or derived from other parameters when read.
type Parameters struct {
	values  map[string]any
	derived map[string]Derivation
	reading map[string]bool
}

// NewParameters returns an empty set.
func NewParameters() *Parameters {
	return &Parameters{
		values:  make(map[string]any),
		derived: make(map[string]Derivation),
	}
}

// Set stores a literal value, replacing any derivation of the same name.
func (ps *Parameters) Set(name string, v any) {
	delete(ps.derived, name)
	ps.values[name] = v
}

// SetDerived stores a derivation, replacing any literal of the same name.
func (ps *Parameters) SetDerived(name string, fn Derivation) {
	delete(ps.values, name)
	ps.derived[name] = fn
}

// Has reports whether name is defined.
func (ps *Parameters) Has(name string) bool {
	_, lit := ps.values[name]
	_, der := ps.derived[name]
	return lit || der
}

// Names returns all parameter names, sorted.
func (ps *Parameters) Names() []string {
	names := make([]string, 0, len(ps.values)+len(ps.derived))
	for n := range ps.values {
		names = append(names, n)
	}
	for n := range ps.derived {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the value of name, evaluating derivations. A derivation that
// reads itself, directly or not, is an error.
func (ps *Parameters) Get(name string) (any, error) {
	if v, ok := ps.values[name]; ok {
		return v, nil
	}
	fn, ok := ps.derived[name]
	if !ok {
		return nil, fmt.Errorf("%w: parameter %q", ErrNotFound, name)
	}
	if ps.reading == nil {
		ps.reading = make(map[string]bool)
	}
	if ps.reading[name] {
		return nil, Invariant("parameter %q derives from itself", name)
	}
	ps.reading[name] = true
	defer delete(ps.reading, name)
	return fn(ps)
}

// Float returns name as a float64; integer values are converted.
func (ps *Parameters) Float(name string) (float64, error) {
	v, err := ps.Get(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("parameter %q is %T, not a number", name, v)
}

// Int returns name as an int; floats must be integral.
func (ps *Parameters) Int(name string) (int, error) {
	v, err := ps.Get(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("parameter %q is %v, not an integer", name, v)
}

// Bool returns name as a bool.
func (ps *Parameters) Bool(name string) (bool, error) {
	v, err := ps.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q is %T, not a bool", name, v)
	}
	return b, nil
}

// String returns name as a string.
func (ps *Parameters) String(name string) (string, error) {
	v, err := ps.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q is %T, not a string", name, v)
	}
	return s, nil
}
