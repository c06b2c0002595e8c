package core

import (
	"fmt"
)

// A PathConflictError describes two distinct artifacts resolving to the same path in
// one runfiles tree. Under ConflictError mapping construction fails with one of these
// per conflicting path (aggregated into a single error); under ConflictWarn the same
// information is logged and First wins.
type PathConflictError struct {
	Path          RunfilesPath
	First, Second *Artifact
}

func (err *PathConflictError) Error() string {
	return fmt.Sprintf("Conflicting runfiles at %s: %s and %s", err.Path, err.First, err.Second)
}

// A ReservedPathError is returned when a repo mapping manifest is requested but the
// runfiles set maps something else at its reserved path. This is always fatal
// regardless of the conflict policy.
type ReservedPathError struct {
	Path RunfilesPath
	// Occupant is the artifact already mapped at the reserved path, or nil if the
	// occupant was an empty-file marker.
	Occupant *Artifact
}

func (err *ReservedPathError) Error() string {
	if err.Occupant == nil {
		return fmt.Sprintf("Cannot stage repo mapping manifest: %s is reserved but is declared as an empty file", err.Path)
	}
	return fmt.Sprintf("Cannot stage repo mapping manifest: %s is reserved but %s is mapped there", err.Path, err.Occupant)
}

// An InvalidPathError is returned when a string can't be used as a runfiles path,
// for example because it's absolute or would escape the tree. These are always
// detected when a runfiles set is constructed; by the time a mapping is built all
// paths are known good.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (err *InvalidPathError) Error() string {
	return fmt.Sprintf("Invalid runfiles path %q: %s", err.Path, err.Reason)
}
