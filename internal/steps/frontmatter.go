package steps

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/kiln/internal/pipeline"
)

// ErrMalformedFrontMatter indicates an opening fence without a closing one.
var ErrMalformedFrontMatter = errors.New("steps: malformed frontmatter")

var (
	fenceOpen  = []byte("---\n")
	fenceClose = []byte("\n---\n")
	fenceEOF   = []byte("\n---")
)

// ParseFrontMatter splits a leading `---` YAML block from the body. A document
// without an opening fence returns nil metadata and the content unchanged.
func ParseFrontMatter(content []byte) (map[string]any, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, fenceOpen) {
		return nil, content, nil
	}
	rest := normalized[len(fenceOpen):]
	var block, body []byte
	if idx := bytes.Index(rest, fenceClose); idx >= 0 {
		block, body = rest[:idx], rest[idx+len(fenceClose):]
	} else if bytes.HasSuffix(rest, fenceEOF) {
		block, body = rest[:len(rest)-len(fenceEOF)], []byte{}
	} else if bytes.HasPrefix(rest, []byte("---")) {
		block, body = nil, bytes.TrimPrefix(bytes.TrimPrefix(rest, []byte("---")), []byte("\n"))
	} else {
		return nil, nil, ErrMalformedFrontMatter
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return nil, nil, fmt.Errorf("steps: parse frontmatter: %w", err)
	}
	return meta, body, nil
}

// Frontmatter merges the YAML header into the metadata and keeps the body.
type Frontmatter struct {
	pipeline.Base
}

// NewFrontmatter builds the frontmatter step.
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{Base: pipeline.NewBase(pipeline.StepFrontmatter)}
}

// Transform implements pipeline.Step.
func (s *Frontmatter) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	meta, body, err := ParseFrontMatter(a.Content)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("%w in %s", err, a.Path)
	}
	if meta == nil {
		return pipeline.Continue(a), nil
	}
	return pipeline.Continue(a.WithMetadata(meta).WithContent(body)), nil
}
