package manifest

import (
	"fmt"

	"github.com/papapumpkin/assoc/internal/array"
)

// ValidationError records a validation problem with its location in the
// manifest.
type ValidationError struct {
	Section string // "entities", "arrays" or "overrides"
	Name    string
	Field   string
	Err     error
}

// Error returns a human-readable string including the section and name.
func (e *ValidationError) Error() string {
	if e.Name != "" {
		return e.Section + " " + e.Name + ": " + e.Err.Error()
	}
	return e.Section + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks a manifest for structural correctness: required fields,
// unique names, known references, and sources consumed at most once.
// Arrays may use earlier arrays as sources.
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError
	add := func(section, name, field string, err error) {
		errs = append(errs, ValidationError{Section: section, Name: name, Field: field, Err: err})
	}

	names := make(map[string]string) // name → section
	entities := make(map[string]bool)
	for _, e := range m.Entities {
		if e.Name == "" {
			add("entities", "", "name", fmt.Errorf("%w: name", ErrMissingField))
			continue
		}
		if prev, ok := names[e.Name]; ok {
			add("entities", e.Name, "name", fmt.Errorf("%w: %q already defined in %s", ErrDuplicateName, e.Name, prev))
		}
		names[e.Name] = "entities"
		entities[e.Name] = true
		if err := checkGeometry(e); err != nil {
			add("entities", e.Name, "kind", err)
		}
	}

	consumed := make(map[string]string) // entity → consumer
	consume := func(section, owner, src string) {
		if !entities[src] {
			return
		}
		if prev, ok := consumed[src]; ok {
			add(section, owner, "sources", fmt.Errorf("%w: %q already consumed by %s", ErrSharedSource, src, prev))
			return
		}
		consumed[src] = owner
	}

	arrays := make(map[string]bool)
	paths := make(map[string]bool)
	for _, a := range m.Arrays {
		if a.Name == "" {
			add("arrays", "", "name", fmt.Errorf("%w: name", ErrMissingField))
			continue
		}
		if prev, ok := names[a.Name]; ok {
			add("arrays", a.Name, "name", fmt.Errorf("%w: %q already defined in %s", ErrDuplicateName, a.Name, prev))
		}
		names[a.Name] = "arrays"
		switch a.Kind {
		case KindRectangular, KindPolar:
			if a.Path != "" {
				add("arrays", a.Name, "path", fmt.Errorf("%s arrays take no path", a.Kind))
			}
		case KindPath:
			switch {
			case a.Path == "":
				add("arrays", a.Name, "path", fmt.Errorf("%w: path", ErrMissingField))
			case !entities[a.Path]:
				add("arrays", a.Name, "path", fmt.Errorf("%w: path %q is not an entity", ErrUnknownRef, a.Path))
			default:
				paths[a.Path] = true
			}
		case "":
			add("arrays", a.Name, "kind", fmt.Errorf("%w: kind", ErrMissingField))
		default:
			add("arrays", a.Name, "kind", fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind))
		}
		if _, err := array.ParsePathLossPolicy(a.PathLoss); err != nil {
			add("arrays", a.Name, "path_loss", err)
		}
		if len(a.Sources) == 0 {
			add("arrays", a.Name, "sources", fmt.Errorf("%w: sources", ErrMissingField))
		}
		for _, src := range a.Sources {
			if !entities[src] && !arrays[src] {
				add("arrays", a.Name, "sources", fmt.Errorf("%w: source %q is not an entity or an earlier array", ErrUnknownRef, src))
				continue
			}
			consume("arrays", a.Name, src)
		}
		arrays[a.Name] = true
	}

	seen := make(map[string]bool)
	for _, o := range m.Overrides {
		if o.Name == "" {
			add("overrides", "", "name", fmt.Errorf("%w: name", ErrMissingField))
			continue
		}
		if seen[o.Name] {
			add("overrides", o.Name, "name", fmt.Errorf("%w: %q", ErrDuplicateName, o.Name))
		}
		seen[o.Name] = true
		if !arrays[o.Array] {
			add("overrides", o.Name, "array", fmt.Errorf("%w: array %q", ErrUnknownRef, o.Array))
		}
		if len(o.Items) == 0 {
			add("overrides", o.Name, "items", fmt.Errorf("%w: items", ErrMissingField))
		}
		for _, it := range o.Items {
			if len(it) == 0 || len(it) > 3 {
				add("overrides", o.Name, "items", fmt.Errorf("item locator %v needs 1 to 3 indices", it))
			}
		}
		if len(o.Sources) == 0 {
			add("overrides", o.Name, "sources", fmt.Errorf("%w: sources", ErrMissingField))
		}
		for _, src := range o.Sources {
			if !entities[src] && !arrays[src] {
				add("overrides", o.Name, "sources", fmt.Errorf("%w: source %q", ErrUnknownRef, src))
				continue
			}
			consume("overrides", o.Name, src)
		}
	}

	for p := range paths {
		if owner, ok := consumed[p]; ok {
			add("arrays", owner, "sources", fmt.Errorf("%w: %q is also a path", ErrSharedSource, p))
		}
	}
	return errs
}

func checkGeometry(e EntitySpec) error {
	switch e.Kind {
	case EntityLine:
		if len(e.Start) == 0 || len(e.End) == 0 {
			return fmt.Errorf("%w: line needs start and end", ErrMissingField)
		}
	case EntityCircle:
		if e.Radius <= 0 {
			return fmt.Errorf("circle radius must be > 0, got %g", e.Radius)
		}
	case EntityPolyline:
		if len(e.Points) < 2 {
			return fmt.Errorf("polyline needs at least 2 points, got %d", len(e.Points))
		}
	case "":
		return fmt.Errorf("%w: kind", ErrMissingField)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	return nil
}

// locator converts an [item, row, level] triple; missing indices are 0.
func locator(idx []int32) array.ItemLocator {
	var loc array.ItemLocator
	if len(idx) > 0 {
		loc.Item = idx[0]
	}
	if len(idx) > 1 {
		loc.Row = idx[1]
	}
	if len(idx) > 2 {
		loc.Level = idx[2]
	}
	return loc
}
