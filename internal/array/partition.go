package array

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/assoc/internal/assoc"
)

// OverrideConflictError reports a locator that is not controlled by exactly
// one of an array and its modify overrides.
type OverrideConflictError struct {
	Array   assoc.ActionID
	Locator ItemLocator
	// Claims is how many actions control the locator (0 or more than 1).
	Claims int
}

func (e *OverrideConflictError) Error() string {
	return fmt.Sprintf("array %d item %s: controlled by %d actions", e.Array, e.Locator, e.Claims)
}

// Is makes the error match assoc.ErrGraphInvariant.
func (e *OverrideConflictError) Is(target error) bool {
	return target == assoc.ErrGraphInvariant
}

// Overrides returns the live modify actions layered on arrayAction.
func Overrides(arrayAction *assoc.Action) []*assoc.Action {
	n := arrayAction.Network()
	if n == nil {
		return nil
	}
	var out []*assoc.Action
	for _, a := range n.Actions() {
		if mb, ok := a.Body().(*ModifyBody); ok && mb.base == arrayAction.ID() {
			out = append(out, a)
		}
	}
	return out
}

// CheckPartition verifies that every live item of arrayAction is controlled
// by exactly one of the array and its overrides.
func CheckPartition(arrayAction *assoc.Action) error {
	ab, ok := arrayAction.Body().(*ArrayBody)
	if !ok {
		return assoc.Invariant("action %d is not an array", arrayAction.ID())
	}
	var mods []*ModifyBody
	for _, a := range Overrides(arrayAction) {
		mods = append(mods, a.Body().(*ModifyBody))
	}
	var errs []error
	for _, it := range ab.params.All() {
		if it.Erased {
			continue
		}
		claims := 0
		if ab.ControlsItem(it.Locator) {
			claims++
		}
		for _, mb := range mods {
			if mb.ControlsItem(it.Locator) {
				claims++
			}
		}
		if claims != 1 {
			errs = append(errs, &OverrideConflictError{Array: arrayAction.ID(), Locator: it.Locator, Claims: claims})
		}
	}
	return errors.Join(errs...)
}
