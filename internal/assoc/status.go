// Package assoc implements the associative dependency graph: dependency
// records that watch drawing objects, actions that own records and
// recompute generated geometry, and networks that evaluate their actions
// under one trigger.
//
// Records live in an arena owned by the Graph and are addressed by
// RecordID; watched objects keep only those ids, so erasing either side
// never leaves a dangling pointer behind.
package assoc

import "fmt"

// Status describes how a record or action relates to the drawing since its
// last evaluation.
type Status int

const (
	StatusUpToDate Status = iota
	StatusChangedDirectly
	StatusFailedToEvaluate
	StatusErased
)

var statusNames = [...]string{
	StatusUpToDate:         "UpToDate",
	StatusChangedDirectly:  "ChangedDirectly",
	StatusFailedToEvaluate: "FailedToEvaluate",
	StatusErased:           "Erased",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Worse returns whichever of s and o is more severe. Severity grows from
// UpToDate through ChangedDirectly and FailedToEvaluate to Erased.
func (s Status) Worse(o Status) Status {
	if o > s {
		return o
	}
	return s
}
