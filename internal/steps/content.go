package steps

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/kingrea/kiln/internal/pipeline"
)

// AddContent loads the source bytes when the artifact arrives without
// content and records the detected MIME type.
type AddContent struct {
	pipeline.Base
	fs billy.Filesystem
}

// NewAddContent reads from fs.
func NewAddContent(fs billy.Filesystem) *AddContent {
	return &AddContent{Base: pipeline.NewBase(pipeline.StepAddContent), fs: fs}
}

// Transform implements pipeline.Step.
func (s *AddContent) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	content := a.Content
	if content == nil {
		data, err := util.ReadFile(s.fs, a.Path)
		if err != nil {
			return pipeline.Outcome{}, fmt.Errorf("steps: read %s: %w", a.Path, err)
		}
		content = data
	}
	return pipeline.Continue(a.WithContent(content).WithMeta(MetaMIME, mimetype.Detect(content).String())), nil
}
