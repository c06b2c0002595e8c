package core

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

// A MappingEntry is one resolved entry of a runfiles mapping: a staged path and the
// artifact staged there, or a nil target for a file that exists but has no content.
type MappingEntry struct {
	Path   RunfilesPath
	Target *Artifact
}

// IsEmptyFile returns true if this entry marks a file with no content.
func (entry MappingEntry) IsEmptyFile() bool {
	return entry.Target == nil
}

// A Mapping is the resolved contents of one runfiles tree: every staged path
// associated with exactly one artifact or empty-file marker. Mappings are immutable
// once built and are shared freely between trees rooted at different directories;
// entry order is deterministic for a given input (declaration order, never map
// iteration order) so symlink trees come out identical run after run.
type Mapping struct {
	entries     []MappingEntry
	index       map[RunfilesPath]int
	artifacts   []*Artifact
	fingerprint uint64
}

// Len returns the number of entries in the mapping.
func (mapping *Mapping) Len() int {
	return len(mapping.entries)
}

// Entries returns every entry in deterministic order. Callers must not modify the
// returned slice.
func (mapping *Mapping) Entries() []MappingEntry {
	return mapping.entries
}

// Entry returns the entry staged at the given path, if there is one.
func (mapping *Mapping) Entry(path RunfilesPath) (MappingEntry, bool) {
	if i, present := mapping.index[path]; present {
		return mapping.entries[i], true
	}
	return MappingEntry{}, false
}

// Artifacts returns the deduplicated artifacts this mapping stages, in first-appearance
// order, excluding empty-file markers. Callers must not modify the returned slice.
func (mapping *Mapping) Artifacts() []*Artifact {
	return mapping.artifacts
}

// Paths returns every staged path, in the same order as Entries.
func (mapping *Mapping) Paths() []RunfilesPath {
	paths := make([]RunfilesPath, len(mapping.entries))
	for i, entry := range mapping.entries {
		paths[i] = entry.Path
	}
	return paths
}

// Fingerprint returns a stable hash of the mapping's (path, target) pairs. Two
// mappings staging the same files at the same paths have the same fingerprint
// regardless of declaration order, so downstream materialisers can cheaply tell
// whether a tree they already built is still current.
func (mapping *Mapping) Fingerprint() uint64 {
	return mapping.fingerprint
}

func (mapping *Mapping) String() string {
	return fmt.Sprintf("runfiles mapping of %d entries (fingerprint %016x)", len(mapping.entries), mapping.fingerprint)
}

// BuildMapping reduces this runfiles value to the final mapping of one tree.
// The reduction is pure and in-memory; it never touches the filesystem.
// Precedence, first wins throughout: explicit symlinks, then artifacts at their
// canonical paths, then empty-file markers, and finally the repo mapping manifest
// (if given) at its reserved path. Two distinct artifacts arriving at one path are
// handled per the runfiles value's conflict policy; anything already mapped at the
// reserved path while a manifest is requested is fatal regardless of policy.
func (runfiles *Runfiles) BuildMapping(repoMappingManifest *Artifact) (*Mapping, error) {
	n := len(runfiles.artifacts) + len(runfiles.symlinks) + len(runfiles.rootSymlinks) + len(runfiles.emptyFiles)
	builder := &mappingBuilder{
		entries: make([]MappingEntry, 0, n),
		index:   make(map[RunfilesPath]int, n),
	}
	ws := runfiles.workspaceName
	for _, link := range runfiles.symlinks {
		builder.put(prefixedPath(ws, link.Path), link.Target)
	}
	for _, link := range runfiles.rootSymlinks {
		builder.put(link.Path, link.Target)
	}
	for _, artifact := range runfiles.artifacts {
		builder.put(runfiles.canonicalPath(artifact), artifact)
		if _, external := externalPath(artifact); external && runfiles.legacyExternalRunfiles {
			// Mirror under <workspace>/external/<repo> for tools predating repo-rooted paths.
			builder.put(prefixedPath(ws, RunfilesPath(artifact.relPath)), artifact)
		}
	}
	// Empty markers never displace a real file; an occupied path is skipped, not a conflict.
	for _, p := range runfiles.emptyFiles {
		builder.putEmpty(prefixedPath(ws, p))
	}
	if runfiles.emptyFilesSupplier != nil {
		for _, p := range runfiles.emptyFilesSupplier.ExtraPaths(builder.workspacePaths(ws)) {
			builder.putEmpty(prefixedPath(ws, p))
		}
	}
	// The workspace directory must exist even when nothing is staged inside it.
	if ws != "" && !builder.seenDirectory(ws) {
		builder.putEmpty(prefixedPath(ws, ".runfile"))
	}
	if repoMappingManifest != nil {
		if i, present := builder.index[RepoMappingManifestPath]; present {
			return nil, &ReservedPathError{Path: RepoMappingManifestPath, Occupant: builder.entries[i].Target}
		}
		builder.put(RepoMappingManifestPath, repoMappingManifest)
	}
	if len(builder.conflicts) > 0 {
		switch runfiles.conflictPolicy {
		case ConflictError:
			var err *multierror.Error
			for _, conflict := range builder.conflicts {
				err = multierror.Append(err, conflict)
			}
			return nil, err.ErrorOrNil()
		case ConflictWarn:
			for _, conflict := range builder.conflicts {
				log.Warning("Conflicting runfiles at %s: keeping %s, dropping %s", conflict.Path, conflict.First, conflict.Second)
			}
		}
	}
	mapping := builder.finish()
	log.Debug("Computed runfiles mapping for %s: %d entries", runfiles, mapping.Len())
	return mapping, nil
}

const externalPrefix = "external/"

// canonicalPath returns the path an artifact is staged at absent any override: its
// root-relative path under the workspace directory, except that artifacts from other
// repos are staged under their repo name at the tree root.
func (runfiles *Runfiles) canonicalPath(artifact *Artifact) RunfilesPath {
	if p, external := externalPath(artifact); external {
		return p
	}
	return prefixedPath(runfiles.workspaceName, RunfilesPath(artifact.relPath))
}

// externalPath returns the repo-rooted staging path for an artifact from another
// repo, i.e. external/<repo>/x stages at <repo>/x, and whether it is one.
func externalPath(artifact *Artifact) (RunfilesPath, bool) {
	if strings.HasPrefix(artifact.relPath, externalPrefix) && len(artifact.relPath) > len(externalPrefix) {
		return RunfilesPath(artifact.relPath[len(externalPrefix):]), true
	}
	return "", false
}

// A mappingBuilder accumulates entries for one mapping under the first-wins rule.
type mappingBuilder struct {
	entries   []MappingEntry
	index     map[RunfilesPath]int
	conflicts []*PathConflictError
}

// put places an artifact at a path. The first distinct artifact at a path keeps it;
// a later distinct arrival is recorded as a conflict, and re-declaring the same
// artifact at the same path is a no-op.
func (builder *mappingBuilder) put(path RunfilesPath, target *Artifact) {
	if i, present := builder.index[path]; present {
		if existing := builder.entries[i].Target; !existing.Equal(target) {
			builder.conflicts = append(builder.conflicts, &PathConflictError{Path: path, First: existing, Second: target})
		}
		return
	}
	builder.index[path] = len(builder.entries)
	builder.entries = append(builder.entries, MappingEntry{Path: path, Target: target})
}

// putEmpty places an empty-file marker at a path unless something already lives there.
func (builder *mappingBuilder) putEmpty(path RunfilesPath) {
	if _, present := builder.index[path]; present {
		return
	}
	builder.index[path] = len(builder.entries)
	builder.entries = append(builder.entries, MappingEntry{Path: path})
}

// seenDirectory returns true if anything has been placed under the given directory.
func (builder *mappingBuilder) seenDirectory(dir string) bool {
	for _, entry := range builder.entries {
		if entry.Path.InDirectory(dir) {
			return true
		}
	}
	return false
}

// workspacePaths returns the workspace-relative paths placed so far, as input for
// the empty-files supplier hook.
func (builder *mappingBuilder) workspacePaths(ws string) []RunfilesPath {
	paths := make([]RunfilesPath, 0, len(builder.entries))
	for _, entry := range builder.entries {
		if entry.Path.InDirectory(ws) {
			paths = append(paths, entry.Path[len(ws)+1:])
		}
	}
	return paths
}

// finish freezes the accumulated entries into an immutable mapping.
func (builder *mappingBuilder) finish() *Mapping {
	mapping := &Mapping{
		entries: builder.entries,
		index:   builder.index,
	}
	seen := make(map[artifactKey]struct{}, len(builder.entries))
	for _, entry := range builder.entries {
		if entry.Target == nil {
			continue
		}
		if _, present := seen[entry.Target.key()]; !present {
			seen[entry.Target.key()] = struct{}{}
			mapping.artifacts = append(mapping.artifacts, entry.Target)
		}
	}
	mapping.fingerprint = fingerprintEntries(builder.entries)
	return mapping
}

// fingerprintEntries hashes (path, target) pairs into a stable 64-bit fingerprint.
// Entries are hashed in sorted path order so declaration order doesn't leak in.
func fingerprintEntries(entries []MappingEntry) uint64 {
	sorted := append([]MappingEntry(nil), entries...)
	slices.SortFunc(sorted, func(a, b MappingEntry) bool { return a.Path < b.Path })
	h := xxhash.New()
	for _, entry := range sorted {
		writeHashedString(h, string(entry.Path))
		if entry.Target != nil {
			writeHashedString(h, entry.Target.ExecPath())
		} else {
			writeHashedString(h, "")
		}
	}
	return h.Sum64()
}

// writeHashedString writes a length-prefixed string so boundaries stay unambiguous.
func writeHashedString(h *xxhash.Digest, s string) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	h.Write(buf[:])
	h.WriteString(s)
}
