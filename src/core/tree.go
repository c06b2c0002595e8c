package core

import (
	"fmt"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/exp/slices"
)

// A SymlinksMode says whether the materialiser creates the symlink farm for a tree.
type SymlinksMode uint8

const (
	// SymlinksSkip creates no symlinks at all.
	SymlinksSkip SymlinksMode = iota
	// SymlinksCreate always creates the full set of symlinks.
	SymlinksCreate
	// SymlinksCreateIfRequired creates symlinks only when a downstream consumer needs them.
	SymlinksCreateIfRequired
)

func (mode SymlinksMode) String() string {
	switch mode {
	case SymlinksSkip:
		return "skip"
	case SymlinksCreate:
		return "create"
	case SymlinksCreateIfRequired:
		return "create-if-required"
	}
	return fmt.Sprintf("unknown(%d)", uint8(mode))
}

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (mode *SymlinksMode) UnmarshalFlag(in string) error {
	return mode.fromString(in)
}

// UnmarshalText implements the encoding.TextUnmarshaler interface, typically for config files.
func (mode *SymlinksMode) UnmarshalText(text []byte) error {
	return mode.fromString(string(text))
}

func (mode *SymlinksMode) fromString(in string) error {
	switch in {
	case "skip":
		*mode = SymlinksSkip
	case "create":
		*mode = SymlinksCreate
	case "create-if-required", "create_if_required":
		*mode = SymlinksCreateIfRequired
	default:
		return fmt.Errorf("Unknown symlinks mode: %s", in)
	}
	return nil
}

// A RunfilesTree is the rooted view of one resolved mapping: the directory the files
// stage into, the mapping itself, and the policy fields the materialiser consumes.
// Trees are immutable; every observable field is fixed at construction. Re-rooting
// produces a new tree that shares the same Mapping reference rather than recomputing.
type RunfilesTree struct {
	execPath            string
	mapping             *Mapping
	symlinksMode        SymlinksMode
	buildRunfileLinks   bool
	repoMappingManifest *Artifact
}

// NewRunfilesTree constructs a new tree view over an already-built mapping.
func NewRunfilesTree(execPath string, mapping *Mapping, symlinksMode SymlinksMode, buildRunfileLinks bool, repoMappingManifest *Artifact) *RunfilesTree {
	return &RunfilesTree{
		execPath:            execPath,
		mapping:             mapping,
		symlinksMode:        symlinksMode,
		buildRunfileLinks:   buildRunfileLinks,
		repoMappingManifest: repoMappingManifest,
	}
}

// ExecPath returns the exec-relative directory this tree stages at.
func (tree *RunfilesTree) ExecPath() string {
	return tree.execPath
}

// Mapping returns the resolved mapping of this tree. Trees rooted at different
// directories over the same resolution share one Mapping reference.
func (tree *RunfilesTree) Mapping() *Mapping {
	return tree.mapping
}

// Artifacts returns the deduplicated artifacts this tree stages, excluding
// empty-file markers. Callers must not modify the returned slice.
func (tree *RunfilesTree) Artifacts() []*Artifact {
	return tree.mapping.Artifacts()
}

// SymlinksMode returns whether the materialiser creates this tree's symlink farm.
func (tree *RunfilesTree) SymlinksMode() SymlinksMode {
	return tree.symlinksMode
}

// BuildRunfileLinks returns true if legacy runfile links are produced for this tree.
func (tree *RunfilesTree) BuildRunfileLinks() bool {
	return tree.buildRunfileLinks
}

// RepoMappingManifest returns the manifest staged at the tree's reserved path, or nil.
func (tree *RunfilesTree) RepoMappingManifest() *Artifact {
	return tree.repoMappingManifest
}

// Fingerprint returns the stable fingerprint of this tree's mapping.
func (tree *RunfilesTree) Fingerprint() uint64 {
	return tree.mapping.Fingerprint()
}

// Artifact returns the artifact staged at the given path, or nil with no error for
// an empty-file marker. Asking for a path that isn't in the tree is an error; the
// message names close matches when there are any.
func (tree *RunfilesTree) Artifact(path RunfilesPath) (*Artifact, error) {
	if entry, present := tree.mapping.Entry(path); present {
		return entry.Target, nil
	}
	return nil, fmt.Errorf("Nothing staged at %s in runfiles tree %s%s", path, tree.execPath, suggestPaths(path, tree.mapping.Paths()))
}

func (tree *RunfilesTree) String() string {
	return fmt.Sprintf("runfiles tree at %s (%d entries)", tree.execPath, tree.mapping.Len())
}

const maxSuggestionDistance = 5

type suggestion struct {
	path string
	dist int
}

// suggestPaths produces a "maybe you meant" message for a missing path, or an empty
// string if nothing staged is close enough.
func suggestPaths(needle RunfilesPath, haystack []RunfilesPath) string {
	r := []rune(string(needle))
	options := make([]suggestion, 0, 4)
	for _, straw := range haystack {
		if distance := levenshtein.DistanceForStrings(r, []rune(string(straw)), levenshtein.DefaultOptions); distance <= maxSuggestionDistance {
			options = append(options, suggestion{path: string(straw), dist: distance})
		}
	}
	if len(options) == 0 {
		return ""
	}
	slices.SortStableFunc(options, func(a, b suggestion) bool { return a.dist < b.dist })
	msg := "\nMaybe you meant "
	for i, option := range options {
		if i > 0 {
			if i < len(options)-1 {
				msg += " , " // Leave a space before the comma so you can select them without getting the question mark
			} else {
				msg += " or "
			}
		}
		msg += option.path
	}
	return msg + " ?" // Leave a space so you can select them without getting the question mark
}
