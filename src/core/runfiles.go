package core

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("core")

// A ConflictPolicy determines what happens when two distinct artifacts resolve to
// the same path in one runfiles tree. Whichever policy is chosen, resolution is
// deterministic: declaration order decides the winner, never map iteration order.
type ConflictPolicy uint8

const (
	// ConflictWarn keeps the first-declared artifact and logs the one it beat. The default.
	ConflictWarn ConflictPolicy = iota
	// ConflictIgnore keeps the first-declared artifact silently.
	ConflictIgnore
	// ConflictError fails mapping construction, reporting every conflicting path at once.
	ConflictError
)

func (policy ConflictPolicy) String() string {
	switch policy {
	case ConflictWarn:
		return "warn"
	case ConflictIgnore:
		return "ignore"
	case ConflictError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", uint8(policy))
}

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (policy *ConflictPolicy) UnmarshalFlag(in string) error {
	return policy.fromString(in)
}

// UnmarshalText implements the encoding.TextUnmarshaler interface, typically for config files.
func (policy *ConflictPolicy) UnmarshalText(text []byte) error {
	return policy.fromString(string(text))
}

func (policy *ConflictPolicy) fromString(in string) error {
	switch strings.ToLower(in) {
	case "warn", "warning":
		*policy = ConflictWarn
	case "ignore":
		*policy = ConflictIgnore
	case "error":
		*policy = ConflictError
	default:
		return fmt.Errorf("Unknown conflict policy: %s", in)
	}
	return nil
}

// An EmptyFilesSupplier derives extra empty files from the set of paths already placed
// under the workspace directory; a language rule can use one to drop an __init__.py
// next to every Python module, for example.
type EmptyFilesSupplier interface {
	// ExtraPaths returns extra workspace-relative empty-file paths to add for the
	// given already-placed workspace-relative paths.
	ExtraPaths(paths []RunfilesPath) []RunfilesPath
}

// A SymlinkEntry maps one explicit path in a runfiles tree to the artifact staged there.
type SymlinkEntry struct {
	Path   RunfilesPath
	Target *Artifact
}

// A Runfiles value is an immutable, declarative description of what belongs in the
// runtime tree of one runnable target: the artifacts placed at their canonical paths,
// explicit symlinks overriding that placement, and markers for files that must exist
// but have no content. Construct them with a RunfilesBuilder; the zero value is usable
// and empty.
type Runfiles struct {
	workspaceName          string
	artifacts              []*Artifact
	symlinks               []SymlinkEntry
	rootSymlinks           []SymlinkEntry
	emptyFiles             []RunfilesPath
	emptyFilesSupplier     EmptyFilesSupplier
	legacyExternalRunfiles bool
	conflictPolicy         ConflictPolicy
}

// EmptyRunfiles is the canonical runfiles value with nothing in it.
var EmptyRunfiles = &Runfiles{}

// WorkspaceName returns the name of the directory under the tree root that the main
// repo's runfiles live in.
func (runfiles *Runfiles) WorkspaceName() string {
	return runfiles.workspaceName
}

// Artifacts returns the artifacts staged at their canonical paths, in declaration order.
// Callers must not modify the returned slice.
func (runfiles *Runfiles) Artifacts() []*Artifact {
	return runfiles.artifacts
}

// Symlinks returns the explicit workspace-relative symlinks, in declaration order.
// Callers must not modify the returned slice.
func (runfiles *Runfiles) Symlinks() []SymlinkEntry {
	return runfiles.symlinks
}

// RootSymlinks returns the explicit tree-root-relative symlinks, in declaration order.
// Callers must not modify the returned slice.
func (runfiles *Runfiles) RootSymlinks() []SymlinkEntry {
	return runfiles.rootSymlinks
}

// EmptyFilePaths returns the workspace-relative paths declared to exist as empty files.
// Callers must not modify the returned slice.
func (runfiles *Runfiles) EmptyFilePaths() []RunfilesPath {
	return runfiles.emptyFiles
}

// ConflictPolicy returns what happens when two artifacts resolve to the same path.
func (runfiles *Runfiles) ConflictPolicy() ConflictPolicy {
	return runfiles.conflictPolicy
}

// LegacyExternalRunfiles returns true if artifacts from other repos are additionally
// mirrored under <workspace>/external/<repo> for tools that predate repo-rooted paths.
func (runfiles *Runfiles) LegacyExternalRunfiles() bool {
	return runfiles.legacyExternalRunfiles
}

// Empty returns true if this value declares nothing at all to stage.
func (runfiles *Runfiles) Empty() bool {
	return len(runfiles.artifacts) == 0 && len(runfiles.symlinks) == 0 &&
		len(runfiles.rootSymlinks) == 0 && len(runfiles.emptyFiles) == 0 &&
		runfiles.emptyFilesSupplier == nil
}

func (runfiles *Runfiles) String() string {
	return fmt.Sprintf("runfiles of %s (%d artifacts, %d symlinks)", runfiles.workspaceName,
		len(runfiles.artifacts), len(runfiles.symlinks)+len(runfiles.rootSymlinks))
}

// A RunfilesBuilder accumulates the contents of a Runfiles value. It's not safe for
// concurrent use. Paths are validated as they arrive but failures surface only from
// Build, which returns everything collected along the way, so calls chain freely.
type RunfilesBuilder struct {
	runfiles Runfiles
	err      *multierror.Error
}

// NewRunfilesBuilder constructs a builder for the given workspace name.
// Panics if the name is invalid.
func NewRunfilesBuilder(workspaceName string, legacyExternalRunfiles bool) *RunfilesBuilder {
	builder, err := TryNewRunfilesBuilder(workspaceName, legacyExternalRunfiles)
	if err != nil {
		panic(err)
	}
	return builder
}

// TryNewRunfilesBuilder constructs a builder for the given workspace name.
func TryNewRunfilesBuilder(workspaceName string, legacyExternalRunfiles bool) (*RunfilesBuilder, error) {
	if err := ValidateWorkspaceName(workspaceName); err != nil {
		return nil, err
	}
	return &RunfilesBuilder{
		runfiles: Runfiles{
			workspaceName:          workspaceName,
			legacyExternalRunfiles: legacyExternalRunfiles,
		},
	}, nil
}

// AddArtifact adds one artifact to stage at its canonical path.
func (builder *RunfilesBuilder) AddArtifact(artifact *Artifact) *RunfilesBuilder {
	if artifact == nil {
		builder.err = multierror.Append(builder.err, fmt.Errorf("Cannot add a nil artifact to runfiles"))
		return builder
	}
	builder.runfiles.artifacts = append(builder.runfiles.artifacts, artifact)
	return builder
}

// AddArtifacts adds a series of artifacts to stage at their canonical paths.
func (builder *RunfilesBuilder) AddArtifacts(artifacts ...*Artifact) *RunfilesBuilder {
	for _, artifact := range artifacts {
		builder.AddArtifact(artifact)
	}
	return builder
}

// AddSymlink stages the given artifact at an explicit workspace-relative path,
// taking precedence over any canonical placement there.
func (builder *RunfilesBuilder) AddSymlink(path string, target *Artifact) *RunfilesBuilder {
	builder.addSymlink(&builder.runfiles.symlinks, path, target)
	return builder
}

// AddRootSymlink stages the given artifact at an explicit path relative to the tree
// root, outside the workspace directory.
func (builder *RunfilesBuilder) AddRootSymlink(path string, target *Artifact) *RunfilesBuilder {
	builder.addSymlink(&builder.runfiles.rootSymlinks, path, target)
	return builder
}

func (builder *RunfilesBuilder) addSymlink(entries *[]SymlinkEntry, path string, target *Artifact) {
	p, err := TryNewRunfilesPath(path)
	if err != nil {
		builder.err = multierror.Append(builder.err, err)
		return
	}
	if target == nil {
		builder.err = multierror.Append(builder.err, fmt.Errorf("Cannot symlink %s to a nil artifact", p))
		return
	}
	*entries = append(*entries, SymlinkEntry{Path: p, Target: target})
}

// AddEmptyFile declares that the given workspace-relative path must exist as an
// empty file in the tree.
func (builder *RunfilesBuilder) AddEmptyFile(path string) *RunfilesBuilder {
	p, err := TryNewRunfilesPath(path)
	if err != nil {
		builder.err = multierror.Append(builder.err, err)
		return builder
	}
	builder.runfiles.emptyFiles = append(builder.runfiles.emptyFiles, p)
	return builder
}

// SetEmptyFilesSupplier sets the hook that derives extra empty files from the set of
// placed paths.
func (builder *RunfilesBuilder) SetEmptyFilesSupplier(supplier EmptyFilesSupplier) *RunfilesBuilder {
	builder.runfiles.emptyFilesSupplier = supplier
	return builder
}

// SetConflictPolicy sets what happens when two artifacts resolve to the same path.
func (builder *RunfilesBuilder) SetConflictPolicy(policy ConflictPolicy) *RunfilesBuilder {
	builder.runfiles.conflictPolicy = policy
	return builder
}

// Merge adds the contents of another runfiles value. The builder's workspace name,
// flags and policy stand; the other value's empty-files supplier is taken only if
// none is set here yet.
func (builder *RunfilesBuilder) Merge(other *Runfiles) *RunfilesBuilder {
	if other == nil {
		return builder
	}
	runfiles := &builder.runfiles
	runfiles.artifacts = append(runfiles.artifacts, other.artifacts...)
	runfiles.symlinks = append(runfiles.symlinks, other.symlinks...)
	runfiles.rootSymlinks = append(runfiles.rootSymlinks, other.rootSymlinks...)
	runfiles.emptyFiles = append(runfiles.emptyFiles, other.emptyFiles...)
	if runfiles.emptyFilesSupplier == nil {
		runfiles.emptyFilesSupplier = other.emptyFilesSupplier
	}
	return builder
}

// Build returns the finished runfiles value, or every error collected since the
// builder was created. The builder can keep accumulating afterwards; the returned
// value is unaffected.
func (builder *RunfilesBuilder) Build() (*Runfiles, error) {
	if err := builder.err.ErrorOrNil(); err != nil {
		return nil, err
	}
	runfiles := builder.runfiles
	runfiles.artifacts = append([]*Artifact(nil), builder.runfiles.artifacts...)
	runfiles.symlinks = append([]SymlinkEntry(nil), builder.runfiles.symlinks...)
	runfiles.rootSymlinks = append([]SymlinkEntry(nil), builder.runfiles.rootSymlinks...)
	runfiles.emptyFiles = append([]RunfilesPath(nil), builder.runfiles.emptyFiles...)
	return &runfiles, nil
}

// MustBuild is like Build but dies on error. Intended for tests and static values.
func (builder *RunfilesBuilder) MustBuild() *Runfiles {
	runfiles, err := builder.Build()
	if err != nil {
		log.Fatalf("Failed to build runfiles: %s", err)
	}
	return runfiles
}
