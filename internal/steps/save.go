package steps

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/kingrea/kiln/internal/pipeline"
)

// Save writes the content to every output path and halts the branch.
// Artifacts without outputs are written at their source path.
type Save struct {
	pipeline.Base
	fs billy.Filesystem
}

// NewSave writes into fs.
func NewSave(fs billy.Filesystem) *Save {
	return &Save{Base: pipeline.NewBase(pipeline.StepSave), fs: fs}
}

// Transform implements pipeline.Step.
func (s *Save) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	outputs := a.Outputs
	if len(outputs) == 0 {
		outputs = []pipeline.Output{{Path: filepath.ToSlash(a.Path)}}
	}
	saved := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := util.WriteFile(s.fs, out.Path, a.Content, 0o644); err != nil {
			return pipeline.Outcome{}, fmt.Errorf("steps: save %s: %w", out.Path, err)
		}
		saved = append(saved, out.Path)
	}
	return pipeline.Halt(a.WithOutputs(outputs...).WithMeta(MetaSaved, saved)), nil
}
