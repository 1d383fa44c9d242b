package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/config"
)

// Bundler transpiles discovered suite files into the runtime-ready bundles
// dispatched to a Target. Spec §4.7 step 6 names this collaborator
// (transpile to CJS with a banner/footer/inject/sourcemap transform) but
// its implementation is explicitly out of scope (Non-goals: "implementing
// a bundler").
type Bundler interface {
	Transpile(rootDir string, files map[string]string, opts config.BuildOpts) (map[string][]byte, error)
}

// PassthroughBundler is the reference Bundler used when no real bundler
// collaborator is wired in: it reads each discovered file's bytes
// unchanged, which is sufficient for the Local Target's BundleRunner to
// execute directly and for exercising the rest of the pipeline end-to-end.
type PassthroughBundler struct{}

// Transpile reads every file in files relative to rootDir.
func (PassthroughBundler) Transpile(rootDir string, files map[string]string, opts config.BuildOpts) (map[string][]byte, error) {
	out := make(map[string][]byte, len(files))
	for logicalKey, rel := range files {
		data, err := os.ReadFile(filepath.Join(rootDir, rel))
		if err != nil {
			return nil, errors.WrapKind(errors.KindBundle, err, "bundler: failed to read "+rel)
		}
		out[logicalKey] = data
	}
	return out, nil
}

var _ Bundler = PassthroughBundler{}
