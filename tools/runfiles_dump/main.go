// Package main implements runfiles_dump, a little debugging tool that resolves a
// runfiles tree described on the command line and prints the final mapping.
//
// The core library is what the build scheduler drives; this exists so humans can see
// what a given set of artifacts, symlinks and empty files resolves to without running
// a build, which is handy when chasing down path conflicts.
package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/thought-machine/go-flags"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/please-build/runfiles/src/cli"
	logger "github.com/please-build/runfiles/src/cli/logging"
	"github.com/please-build/runfiles/src/core"
	"github.com/please-build/runfiles/src/metrics"
)

var log = logger.Log

var opts = struct {
	Usage         string
	Verbosity     cli.Verbosity     `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (higher number = more output)"`
	Config        []flags.Filename  `short:"c" long:"config" description:"Config file to read; can be repeated, later files override earlier ones"`
	RunfilesDir   string            `short:"d" long:"dir" default:"testbin.runfiles" description:"Directory the tree notionally stages at"`
	WorkspaceName string            `short:"w" long:"workspace" description:"Workspace name; overrides the config file"`
	Root          string            `short:"r" long:"root" default:"plz-out/gen" description:"Root that generated artifacts live under"`
	Artifacts     []string          `short:"a" long:"artifact" description:"Root-relative path of an artifact to stage canonically; can be repeated"`
	Sources       []string          `short:"s" long:"source" description:"Source-root-relative path of an artifact to stage canonically; can be repeated"`
	Symlinks      map[string]string `short:"l" long:"symlink" description:"Explicit workspace-relative symlink, as path:root-relative-target"`
	RootSymlinks  map[string]string `long:"root_symlink" description:"Explicit tree-root-relative symlink, as path:root-relative-target"`
	EmptyFiles    []string          `short:"e" long:"empty" description:"Workspace-relative path that must exist as an empty file"`
	Manifest      string            `short:"m" long:"repo_mapping" description:"Root-relative path of a repo mapping manifest to stage"`
	Fingerprint   bool              `short:"f" long:"fingerprint" description:"Also print the mapping fingerprint"`
}{
	Usage: `
Runfiles dump resolves the runtime file tree of a runnable target from a declarative
description given on the command line, exactly the way the build scheduler would, and
prints the resulting path mapping.

It is purely a debugging aid; nothing is written to disk. Its most common use is
working out why two things ended up fighting over the same path, since it applies the
same first-declaration-wins rule and conflict policy as a real build.
`,
}

func main() {
	cli.ParseFlagsOrDie("Runfiles dump", &opts)
	cli.InitLogging(opts.Verbosity)

	configFiles := make([]string, len(opts.Config))
	for i, filename := range opts.Config {
		configFiles[i] = string(filename)
	}
	config, err := core.ReadConfigFiles(configFiles)
	if err != nil {
		log.Fatalf("Error reading config: %s", err)
	}
	metrics.InitFromConfig(config)

	workspaceName := config.Runfiles.WorkspaceName
	if opts.WorkspaceName != "" {
		workspaceName = opts.WorkspaceName
	}
	builder, err := core.TryNewRunfilesBuilder(workspaceName, config.Runfiles.LegacyExternalRunfiles)
	if err != nil {
		log.Fatalf("%s", err)
	}
	builder.SetConflictPolicy(config.Runfiles.ConflictPolicy)
	root, err := core.TryNewArtifactRoot(opts.Root)
	if err != nil {
		log.Fatalf("Invalid artifact root: %s", err)
	}
	for _, relPath := range opts.Artifacts {
		builder.AddArtifact(mustArtifact(root, relPath))
	}
	for _, relPath := range opts.Sources {
		builder.AddArtifact(mustArtifact(core.SourceRoot, relPath))
	}
	addSymlinks(opts.Symlinks, root, builder.AddSymlink)
	addSymlinks(opts.RootSymlinks, root, builder.AddRootSymlink)
	for _, p := range opts.EmptyFiles {
		builder.AddEmptyFile(p)
	}
	var manifest *core.Artifact
	if opts.Manifest != "" {
		manifest = mustArtifact(root, opts.Manifest)
	}
	runfiles, err := builder.Build()
	if err != nil {
		log.Fatalf("Invalid runfiles: %s", err)
	}

	supplier := core.NewCachingSingleRunfilesSupplier(opts.RunfilesDir, runfiles, manifest,
		config.Runfiles.SymlinksMode, config.Runfiles.BuildRunfileLinks)
	start := time.Now()
	mapping, err := supplier.Mapping()
	metrics.Record(mapping, time.Since(start), err)
	if err != nil {
		metrics.Stop()
		log.Fatalf("Failed to resolve runfiles: %s", err)
	}
	trees, _ := supplier.RunfilesTrees() // cannot fail once the mapping has been computed
	for _, tree := range trees {
		dumpTree(tree)
	}
	metrics.Stop()
}

// addSymlinks feeds one symlink flag map to the builder in deterministic order.
func addSymlinks(links map[string]string, root core.ArtifactRoot, add func(string, *core.Artifact) *core.RunfilesBuilder) {
	keys := maps.Keys(links)
	slices.Sort(keys)
	for _, path := range keys {
		add(path, mustArtifact(root, links[path]))
	}
}

// mustArtifact constructs an artifact or dies trying.
func mustArtifact(root core.ArtifactRoot, relPath string) *core.Artifact {
	artifact, err := core.TryNewArtifact(root, relPath)
	if err != nil {
		log.Fatalf("%s", err)
	}
	return artifact
}

// dumpTree prints one tree's mapping to stdout.
func dumpTree(tree *core.RunfilesTree) {
	fmt.Printf("%s: %s entries, symlinks %s\n", tree.ExecPath(), humanize.Comma(int64(tree.Mapping().Len())), tree.SymlinksMode())
	for _, entry := range tree.Mapping().Entries() {
		if entry.IsEmptyFile() {
			fmt.Printf("  %s -> (empty)\n", entry.Path)
		} else {
			fmt.Printf("  %s -> %s\n", entry.Path, entry.Target)
		}
	}
	if opts.Fingerprint {
		fmt.Printf("  fingerprint: %016x\n", tree.Fingerprint())
	}
}
