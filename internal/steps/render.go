package steps

import (
	"bytes"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kingrea/kiln/internal/pipeline"
)

const (
	mediaCSS  = "text/css"
	mediaJS   = "application/javascript"
	mediaHTML = "text/html"
)

// Markdown renders CommonMark plus GitHub extensions to HTML.
type Markdown struct {
	pipeline.Base
	md goldmark.Markdown
}

// NewMarkdown builds the markdown step.
func NewMarkdown() *Markdown {
	return &Markdown{
		Base: pipeline.NewBase(pipeline.StepMarkdown),
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Transform implements pipeline.Step.
func (s *Markdown) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	var buf bytes.Buffer
	if err := s.md.Convert(a.Content, &buf); err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: markdown %s: %w", a.Path, err)
	}
	return pipeline.Continue(a.WithContent(buf.Bytes()).WithMeta(MetaContentType, mediaHTML)), nil
}

// Slime stands in for the slim-style template language, which has no Go
// renderer. It always fails with ErrUnsupportedFormat.
type Slime struct {
	pipeline.Base
}

// NewSlime builds the slime step.
func NewSlime() *Slime {
	return &Slime{Base: pipeline.NewBase(pipeline.StepSlime)}
}

// Transform implements pipeline.Step.
func (s *Slime) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	return pipeline.Outcome{}, fmt.Errorf("%w: slime template %s", ErrUnsupportedFormat, a.Path)
}

// Minify shrinks content of one media type.
type Minify struct {
	pipeline.Base
	media string
	m     *minify.M
}

func newMinify(id pipeline.StepID, media string, fn minify.MinifierFunc) *Minify {
	m := minify.New()
	m.AddFunc(media, fn)
	return &Minify{Base: pipeline.NewBase(id), media: media, m: m}
}

// NewCSSMinify builds the stylesheet minifier.
func NewCSSMinify() *Minify {
	return newMinify(pipeline.StepCSSMinify, mediaCSS, css.Minify)
}

// NewJSMinify builds the script minifier.
func NewJSMinify() *Minify {
	return newMinify(pipeline.StepJSMinify, mediaJS, js.Minify)
}

// Transform implements pipeline.Step.
func (s *Minify) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	out, err := s.m.Bytes(s.media, a.Content)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: minify %s: %w", a.Path, err)
	}
	return pipeline.Continue(a.WithContent(out).WithMeta(MetaContentType, s.media)), nil
}
