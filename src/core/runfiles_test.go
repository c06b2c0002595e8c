package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderCollectsEverything(t *testing.T) {
	a1 := mkArtifact("dir/file1")
	a2 := mkArtifact("dir/file2")
	link := mkArtifact("dir/link_target")
	runfiles, err := newBuilder().
		AddArtifact(a1).
		AddArtifacts(a2).
		AddSymlink("links/here", link).
		AddRootSymlink("toplevel", link).
		AddEmptyFile("python/__init__.py").
		Build()
	assert.NoError(t, err)
	assert.Equal(t, "test_workspace", runfiles.WorkspaceName())
	assert.Equal(t, []*Artifact{a1, a2}, runfiles.Artifacts())
	assert.Equal(t, []SymlinkEntry{{Path: "links/here", Target: link}}, runfiles.Symlinks())
	assert.Equal(t, []SymlinkEntry{{Path: "toplevel", Target: link}}, runfiles.RootSymlinks())
	assert.Equal(t, []RunfilesPath{"python/__init__.py"}, runfiles.EmptyFilePaths())
	assert.False(t, runfiles.Empty())
}

func TestBuilderValidatesWorkspaceName(t *testing.T) {
	_, err := TryNewRunfilesBuilder("not a workspace", false)
	assert.Error(t, err)
	assert.Panics(t, func() { NewRunfilesBuilder("not a workspace", false) })
}

func TestBuilderCollectsAllErrors(t *testing.T) {
	_, err := newBuilder().
		AddArtifact(nil).
		AddSymlink("/absolute", mkArtifact("fine")).
		AddSymlink("fine", nil).
		AddEmptyFile("../escape").
		Build()
	assert.Error(t, err)
	// Every problem is reported at once, not just the first.
	assert.Contains(t, err.Error(), "nil artifact")
	assert.Contains(t, err.Error(), `"/absolute"`)
	assert.Contains(t, err.Error(), "Cannot symlink fine")
	assert.Contains(t, err.Error(), `"../escape"`)
}

func TestBuilderNormalisesPaths(t *testing.T) {
	runfiles, err := newBuilder().
		AddSymlink("links//sub/../here", mkArtifact("target")).
		AddEmptyFile("python/./__init__.py").
		Build()
	assert.NoError(t, err)
	assert.Equal(t, RunfilesPath("links/here"), runfiles.Symlinks()[0].Path)
	assert.Equal(t, RunfilesPath("python/__init__.py"), runfiles.EmptyFilePaths()[0])
}

func TestBuildCopiesCollections(t *testing.T) {
	builder := newBuilder().AddArtifact(mkArtifact("one"))
	first, err := builder.Build()
	assert.NoError(t, err)
	builder.AddArtifact(mkArtifact("two"))
	second, err := builder.Build()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(first.Artifacts()), "Building again must not disturb earlier values")
	assert.Equal(t, 2, len(second.Artifacts()))
}

func TestBuilderMerge(t *testing.T) {
	supplier := initSupplier{}
	other := newBuilder().
		AddArtifact(mkArtifact("other/file")).
		AddSymlink("other/link", mkArtifact("other/target")).
		AddEmptyFile("other/empty").
		SetEmptyFilesSupplier(supplier).
		MustBuild()
	runfiles := newBuilder().
		AddArtifact(mkArtifact("mine/file")).
		Merge(other).
		Merge(nil).
		MustBuild()
	assert.Equal(t, 2, len(runfiles.Artifacts()))
	assert.Equal(t, 1, len(runfiles.Symlinks()))
	assert.Equal(t, []RunfilesPath{"other/empty"}, runfiles.EmptyFilePaths())
}

func TestMergeKeepsExistingSupplier(t *testing.T) {
	mine := initSupplier{suffix: "mine"}
	other := newBuilder().SetEmptyFilesSupplier(initSupplier{suffix: "other"}).MustBuild()
	runfiles := newBuilder().
		SetEmptyFilesSupplier(mine).
		AddArtifact(mkArtifact("pkg/mod.py")).
		Merge(other).
		MustBuild()
	mapping, err := runfiles.BuildMapping(nil)
	assert.NoError(t, err)
	_, present := mapping.Entry("test_workspace/pkg/mod.py.mine")
	assert.True(t, present, "The supplier set first stays in charge")
}

func TestEmptyRunfiles(t *testing.T) {
	assert.True(t, EmptyRunfiles.Empty())
	assert.Equal(t, "", EmptyRunfiles.WorkspaceName())
	assert.True(t, newBuilder().MustBuild().Empty())
}

func TestConflictPolicyUnmarshalFlag(t *testing.T) {
	var policy ConflictPolicy
	assert.NoError(t, policy.UnmarshalFlag("error"))
	assert.Equal(t, ConflictError, policy)
	assert.NoError(t, policy.UnmarshalFlag("Warning"))
	assert.Equal(t, ConflictWarn, policy)
	assert.NoError(t, policy.UnmarshalText([]byte("ignore")))
	assert.Equal(t, ConflictIgnore, policy)
	assert.Error(t, policy.UnmarshalFlag("wibble"))
}

func TestConflictPolicyString(t *testing.T) {
	assert.Equal(t, "warn", ConflictWarn.String())
	assert.Equal(t, "ignore", ConflictIgnore.String())
	assert.Equal(t, "error", ConflictError.String())
}

// newBuilder returns a builder for the workspace name the tests use throughout.
func newBuilder() *RunfilesBuilder {
	return NewRunfilesBuilder("test_workspace", false)
}

// mkArtifact constructs a generated artifact at the given root-relative path.
func mkArtifact(relPath string) *Artifact {
	return NewArtifact(NewArtifactRoot("plz-out/gen"), relPath)
}

// initSupplier adds a sibling with a suffix next to every placed path, the way a
// Python rule adds __init__.py files.
type initSupplier struct {
	suffix string
}

func (supplier initSupplier) ExtraPaths(paths []RunfilesPath) []RunfilesPath {
	extra := make([]RunfilesPath, len(paths))
	for i, p := range paths {
		extra[i] = p + "." + RunfilesPath(supplier.suffix)
	}
	return extra
}
