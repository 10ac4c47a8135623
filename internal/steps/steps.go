// Package steps holds the reference transformations behind the built-in
// chain table. Each step embeds pipeline.Base and overrides only the hooks it
// needs.
package steps

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/kingrea/kiln/internal/pipeline"
)

// ErrUnsupportedFormat is returned by steps that recognise a source format
// but have no renderer for it.
var ErrUnsupportedFormat = errors.New("steps: unsupported format")

// Metadata keys read or written by the reference steps.
const (
	MetaMIME        = "mime"
	MetaContentType = "content_type"
	MetaLayout      = "layout"
	MetaPermalink   = "permalink"
	MetaPages       = "pages"
	MetaPage        = "page"
	MetaPageNumber  = "page_number"
	MetaOutputPath  = "output_path"
	MetaFingerprint = "fingerprint"
	MetaWidth       = "width"
	MetaHeight      = "height"
	MetaSaved       = "saved"
)

// Env carries what the filesystem-facing steps need.
type Env struct {
	// Source is the tree artifacts are loaded from. Paths are relative to it.
	Source billy.Filesystem
	// Output receives everything Save writes.
	Output billy.Filesystem
	// LayoutsDir is the layouts directory inside Source.
	LayoutsDir string
	// ImageWidths lists extra widths the image step renders.
	ImageWidths []int
}

// Builtins returns one step per built-in identifier except the profiler,
// which the pipeline registers itself.
func Builtins(env Env) ([]pipeline.Step, error) {
	if env.Source == nil {
		return nil, fmt.Errorf("steps: source filesystem is required")
	}
	if env.Output == nil {
		return nil, fmt.Errorf("steps: output filesystem is required")
	}
	return []pipeline.Step{
		NewAddContent(env.Source),
		NewEEx(),
		NewFrontmatter(),
		NewMarkdown(),
		NewSlime(),
		NewCSSMinify(),
		NewJSMinify(),
		NewPagination(),
		NewOutputPath(),
		NewURLFingerprinting(),
		NewAddLayout(env.Source, env.LayoutsDir),
		NewImage(env.ImageWidths),
		NewSave(env.Output),
	}, nil
}

// RegisterBuiltins registers every built-in step into set.
func RegisterBuiltins(set *pipeline.StepSet, env Env) error {
	builtins, err := Builtins(env)
	if err != nil {
		return err
	}
	for _, step := range builtins {
		if err := set.Register(step); err != nil {
			return err
		}
	}
	return nil
}
