package core

import (
	"path"
)

// An ArtifactRoot is a directory that a set of artifacts is produced under, identified
// by its path relative to the execution root (eg. plz-out/gen or plz-out/bin).
// The source root, under which checked-in files live, has an empty path.
type ArtifactRoot struct {
	execPath string
}

// SourceRoot is the root all source artifacts live under.
var SourceRoot = ArtifactRoot{}

// NewArtifactRoot constructs a new artifact root from the given exec-relative path.
// Panics on failure.
func NewArtifactRoot(execPath string) ArtifactRoot {
	root, err := TryNewArtifactRoot(execPath)
	if err != nil {
		panic(err)
	}
	return root
}

// TryNewArtifactRoot constructs a new artifact root from the given exec-relative path.
// The empty path is the source root.
func TryNewArtifactRoot(execPath string) (ArtifactRoot, error) {
	if execPath == "" {
		return SourceRoot, nil
	}
	p, err := TryNewRunfilesPath(execPath)
	if err != nil {
		return ArtifactRoot{}, err
	}
	return ArtifactRoot{execPath: string(p)}, nil
}

// ExecPath returns this root's path relative to the execution root; it's empty for the source root.
func (root ArtifactRoot) ExecPath() string {
	return root.execPath
}

// IsSourceRoot returns true if this root is the source root.
func (root ArtifactRoot) IsSourceRoot() bool {
	return root.execPath == ""
}

func (root ArtifactRoot) String() string {
	if root.IsSourceRoot() {
		return "<source root>"
	}
	return root.execPath
}

// An Artifact identifies one build input or output underneath a root.
// Artifacts are immutable and their identity is (root, root-relative path); content
// never comes into it, hashing files is someone else's job. Much of this package
// shares *Artifact references between structures, so distinct pointers can still
// name the same file; use Equal when that matters.
type Artifact struct {
	root        ArtifactRoot
	relPath     string
	isDirectory bool
}

// NewArtifact constructs a new artifact under the given root. Panics on failure.
func NewArtifact(root ArtifactRoot, relPath string) *Artifact {
	artifact, err := TryNewArtifact(root, relPath)
	if err != nil {
		panic(err)
	}
	return artifact
}

// TryNewArtifact constructs a new artifact under the given root.
func TryNewArtifact(root ArtifactRoot, relPath string) (*Artifact, error) {
	p, err := TryNewRunfilesPath(relPath)
	if err != nil {
		return nil, err
	}
	return &Artifact{root: root, relPath: string(p)}, nil
}

// NewDirectoryArtifact constructs a new artifact naming an entire directory tree,
// which is staged as a single unit. Panics on failure.
func NewDirectoryArtifact(root ArtifactRoot, relPath string) *Artifact {
	artifact, err := TryNewDirectoryArtifact(root, relPath)
	if err != nil {
		panic(err)
	}
	return artifact
}

// TryNewDirectoryArtifact constructs a new artifact naming an entire directory tree.
func TryNewDirectoryArtifact(root ArtifactRoot, relPath string) (*Artifact, error) {
	artifact, err := TryNewArtifact(root, relPath)
	if err != nil {
		return nil, err
	}
	artifact.isDirectory = true
	return artifact, nil
}

// Root returns the root this artifact lives under.
func (artifact *Artifact) Root() ArtifactRoot {
	return artifact.root
}

// RootRelativePath returns this artifact's path relative to its root.
func (artifact *Artifact) RootRelativePath() string {
	return artifact.relPath
}

// ExecPath returns this artifact's path relative to the execution root.
func (artifact *Artifact) ExecPath() string {
	return path.Join(artifact.root.execPath, artifact.relPath)
}

// IsDirectory returns true if this artifact names an entire directory tree.
func (artifact *Artifact) IsDirectory() bool {
	return artifact.isDirectory
}

// Equal returns true if the two artifacts have the same identity, regardless of
// whether they're the same reference.
func (artifact *Artifact) Equal(other *Artifact) bool {
	return artifact == other || (artifact != nil && other != nil && *artifact == *other)
}

func (artifact *Artifact) String() string {
	return artifact.ExecPath()
}

// key returns a comparable identity key, used to deduplicate artifacts in maps.
func (artifact *Artifact) key() artifactKey {
	return artifactKey{root: artifact.root.execPath, relPath: artifact.relPath}
}

type artifactKey struct {
	root, relPath string
}
