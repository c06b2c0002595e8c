package core

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// A RunfilesSupplier produces the runfiles trees that must be staged before a
// runnable target executes. The scheduler queries suppliers from many goroutines
// at once; all implementations here are safe for concurrent use.
type RunfilesSupplier interface {
	// RunfilesTrees returns the trees to stage, in a deterministic order.
	RunfilesTrees() ([]*RunfilesTree, error)
}

// A mappingCell lazily computes and then permanently holds one mapping. A cell is
// shared by reference between a caching supplier and all of its re-rooted
// derivatives, so whichever of them is queried first does the computation and the
// rest observe the same object. A failure is held just as permanently: the
// computation is pure, so running it again could only reproduce the failure.
type mappingCell struct {
	once    sync.Once
	mapping *Mapping
	err     error
}

// get returns the cell's mapping, computing it on first use.
func (cell *mappingCell) get(runfiles *Runfiles, repoMappingManifest *Artifact) (*Mapping, error) {
	cell.once.Do(func() {
		cell.mapping, cell.err = runfiles.BuildMapping(repoMappingManifest)
	})
	return cell.mapping, cell.err
}

// A SingleRunfilesSupplier owns one runfiles value and one staging directory and
// produces exactly one tree. Construction does no work; the mapping is computed on
// first access and at most once per instance, no matter how many goroutines ask.
// Suppliers from NewCachingSingleRunfilesSupplier additionally share that single
// computation with every derivative made by WithOverriddenRunfilesDir, which is what
// keeps memory bounded when one target's runtime dependencies are staged under
// thousands of different directories in a big build.
type SingleRunfilesSupplier struct {
	runfilesDir         string
	runfiles            *Runfiles
	repoMappingManifest *Artifact
	symlinksMode        SymlinksMode
	buildRunfileLinks   bool
	cell                *mappingCell
	shareCell           bool
	treeOnce            sync.Once
	tree                *RunfilesTree
	treeErr             error
}

// NewSingleRunfilesSupplier constructs a supplier staging the given runfiles at
// runfilesDir. A nil runfiles value is treated as empty.
func NewSingleRunfilesSupplier(runfilesDir string, runfiles *Runfiles, repoMappingManifest *Artifact, symlinksMode SymlinksMode, buildRunfileLinks bool) *SingleRunfilesSupplier {
	return newSingleRunfilesSupplier(runfilesDir, runfiles, repoMappingManifest, symlinksMode, buildRunfileLinks, false)
}

// NewCachingSingleRunfilesSupplier is like NewSingleRunfilesSupplier except that
// every derivative made by WithOverriddenRunfilesDir shares this supplier's one
// mapping computation instead of performing its own.
func NewCachingSingleRunfilesSupplier(runfilesDir string, runfiles *Runfiles, repoMappingManifest *Artifact, symlinksMode SymlinksMode, buildRunfileLinks bool) *SingleRunfilesSupplier {
	return newSingleRunfilesSupplier(runfilesDir, runfiles, repoMappingManifest, symlinksMode, buildRunfileLinks, true)
}

func newSingleRunfilesSupplier(runfilesDir string, runfiles *Runfiles, repoMappingManifest *Artifact, symlinksMode SymlinksMode, buildRunfileLinks bool, shareCell bool) *SingleRunfilesSupplier {
	if runfiles == nil {
		runfiles = EmptyRunfiles
	}
	return &SingleRunfilesSupplier{
		runfilesDir:         runfilesDir,
		runfiles:            runfiles,
		repoMappingManifest: repoMappingManifest,
		symlinksMode:        symlinksMode,
		buildRunfileLinks:   buildRunfileLinks,
		cell:                &mappingCell{},
		shareCell:           shareCell,
	}
}

// RunfilesDir returns the exec-relative directory this supplier's tree stages at.
func (supplier *SingleRunfilesSupplier) RunfilesDir() string {
	return supplier.runfilesDir
}

// Runfiles returns the runfiles value this supplier resolves.
func (supplier *SingleRunfilesSupplier) Runfiles() *Runfiles {
	return supplier.runfiles
}

// Mapping returns this supplier's resolved mapping, computing it on first call.
// Repeated calls return the same object, as do calls on any re-rooted derivative of
// a caching supplier.
func (supplier *SingleRunfilesSupplier) Mapping() (*Mapping, error) {
	return supplier.cell.get(supplier.runfiles, supplier.repoMappingManifest)
}

// Artifacts returns the flattened artifact list of this supplier's mapping,
// computing the mapping first if it never has been.
func (supplier *SingleRunfilesSupplier) Artifacts() ([]*Artifact, error) {
	mapping, err := supplier.Mapping()
	if err != nil {
		return nil, err
	}
	return mapping.Artifacts(), nil
}

// Tree returns this supplier's runfiles tree. The tree is built once per supplier
// and reused by every later call.
func (supplier *SingleRunfilesSupplier) Tree() (*RunfilesTree, error) {
	supplier.treeOnce.Do(func() {
		mapping, err := supplier.Mapping()
		if err != nil {
			supplier.treeErr = err
			return
		}
		supplier.tree = NewRunfilesTree(supplier.runfilesDir, mapping, supplier.symlinksMode, supplier.buildRunfileLinks, supplier.repoMappingManifest)
	})
	return supplier.tree, supplier.treeErr
}

// RunfilesTrees implements the RunfilesSupplier interface. The sequence always
// contains exactly one tree.
func (supplier *SingleRunfilesSupplier) RunfilesTrees() ([]*RunfilesTree, error) {
	tree, err := supplier.Tree()
	if err != nil {
		return nil, err
	}
	return []*RunfilesTree{tree}, nil
}

// WithOverriddenRunfilesDir returns a supplier identical to this one except that it
// stages at the given directory. When the directory is unchanged it returns the
// receiver itself, so callers can rely on pointer equality to detect the no-op.
// A derivative of a caching supplier shares its mapping cell even before anything
// has been computed: whichever of the two is queried first computes, and the other
// reuses the result.
func (supplier *SingleRunfilesSupplier) WithOverriddenRunfilesDir(runfilesDir string) *SingleRunfilesSupplier {
	if runfilesDir == supplier.runfilesDir {
		return supplier
	}
	derived := &SingleRunfilesSupplier{
		runfilesDir:         runfilesDir,
		runfiles:            supplier.runfiles,
		repoMappingManifest: supplier.repoMappingManifest,
		symlinksMode:        supplier.symlinksMode,
		buildRunfileLinks:   supplier.buildRunfileLinks,
		cell:                &mappingCell{},
		shareCell:           supplier.shareCell,
	}
	if supplier.shareCell {
		derived.cell = supplier.cell
	}
	return derived
}

// A CompositeRunfilesSupplier aggregates several suppliers' trees into one ordered
// sequence. Aggregation changes nothing about the members' own caching or
// re-rooting semantics.
type CompositeRunfilesSupplier struct {
	suppliers []RunfilesSupplier
}

// NewCompositeRunfilesSupplier constructs a supplier yielding each member's trees
// in argument order.
func NewCompositeRunfilesSupplier(suppliers ...RunfilesSupplier) *CompositeRunfilesSupplier {
	return &CompositeRunfilesSupplier{suppliers: suppliers}
}

// RunfilesTrees implements the RunfilesSupplier interface. Members resolve in
// parallel; the result preserves member order.
func (supplier *CompositeRunfilesSupplier) RunfilesTrees() ([]*RunfilesTree, error) {
	results := make([][]*RunfilesTree, len(supplier.suppliers))
	var g errgroup.Group
	for i, member := range supplier.suppliers {
		i, member := i, member // capture locally
		g.Go(func() error {
			trees, err := member.RunfilesTrees()
			results[i] = trees
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	trees := make([]*RunfilesTree, 0, len(results))
	for _, result := range results {
		trees = append(trees, result...)
	}
	return trees, nil
}

// EmptyRunfilesSupplier is the supplier with no trees at all.
var EmptyRunfilesSupplier RunfilesSupplier = emptyRunfilesSupplier{}

type emptyRunfilesSupplier struct{}

// RunfilesTrees implements the RunfilesSupplier interface.
func (emptyRunfilesSupplier) RunfilesTrees() ([]*RunfilesTree, error) {
	return nil, nil
}
