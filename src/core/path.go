package core

import (
	"fmt"
	"path"
	"strings"

	"github.com/peterebden/go-deferred-regex"
)

// A RunfilesPath is a normalised, forward-slash path relative to the root of a
// runfiles tree. It's used both as the key of a runfiles mapping and as the
// destination the corresponding file is staged at, so it can never be absolute
// and can never traverse outside the tree.
type RunfilesPath string

// RepoMappingManifestPath is the reserved path at the root of every runfiles tree
// where the repository mapping manifest is staged. Nothing else can be mapped there
// while a manifest is requested.
const RepoMappingManifestPath RunfilesPath = "_repo_mapping"

// This is a little strict; it doesn't allow for non-ascii names, for example.
var workspaceNameRegex = deferredregex.DeferredRegex{Re: `^[A-Za-z0-9_.-]+$`}

// NewRunfilesPath constructs a new runfiles path from the given string. Panics on failure.
func NewRunfilesPath(s string) RunfilesPath {
	p, err := TryNewRunfilesPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// TryNewRunfilesPath constructs a new runfiles path from the given string, normalising
// it in the process. Strings that are empty, absolute, contain backslashes or traverse
// outside the tree via .. segments are rejected.
func TryNewRunfilesPath(s string) (RunfilesPath, error) {
	if s == "" {
		return "", &InvalidPathError{Path: s, Reason: "path is empty"}
	} else if strings.HasPrefix(s, "/") {
		return "", &InvalidPathError{Path: s, Reason: "path is absolute"}
	} else if strings.ContainsRune(s, '\\') {
		return "", &InvalidPathError{Path: s, Reason: "path contains a backslash"}
	}
	cleaned := path.Clean(s)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &InvalidPathError{Path: s, Reason: "path traverses outside the tree"}
	} else if cleaned == "." {
		return "", &InvalidPathError{Path: s, Reason: "path resolves to the tree root"}
	}
	return RunfilesPath(cleaned), nil
}

func (p RunfilesPath) String() string {
	return string(p)
}

// InDirectory returns true if this path is underneath the given directory path.
func (p RunfilesPath) InDirectory(dir string) bool {
	return strings.HasPrefix(string(p), dir+"/")
}

// prefixedPath returns the path formed by placing p under the given directory.
// An empty directory leaves the path unchanged.
func prefixedPath(dir string, p RunfilesPath) RunfilesPath {
	if dir == "" {
		return p
	}
	return RunfilesPath(dir) + "/" + p
}

// ValidateWorkspaceName checks that the given string is usable as a workspace name,
// i.e. as the directory under a runfiles tree root that the main repo's files live in.
func ValidateWorkspaceName(name string) error {
	if workspaceNameRegex.FindStringSubmatch(name) == nil {
		return fmt.Errorf("Invalid workspace name: %q", name)
	}
	return nil
}
