package pipeline

// StepID names a step implementation inside a chain.
type StepID string

// Built-in step identifiers referenced by the default chain table.
const (
	StepProfiler          StepID = "profiler"
	StepAddContent        StepID = "add_content"
	StepEEx               StepID = "eex"
	StepFrontmatter       StepID = "frontmatter"
	StepMarkdown          StepID = "markdown"
	StepSlime             StepID = "slime"
	StepCSSMinify         StepID = "css_minify"
	StepJSMinify          StepID = "js_minify"
	StepPagination        StepID = "pagination"
	StepOutputPath        StepID = "output_path"
	StepURLFingerprinting StepID = "url_fingerprinting"
	StepAddLayout         StepID = "add_layout"
	StepImage             StepID = "image"
	StepSave              StepID = "save"
)

// Directive tells the executor what to do with the artifacts a step produced.
type Directive int

const (
	// DirectiveContinue sends every produced artifact into the remaining chain.
	DirectiveContinue Directive = iota
	// DirectiveHalt returns the produced artifacts without running the rest
	// of the chain for this branch.
	DirectiveHalt
)

func (d Directive) String() string {
	switch d {
	case DirectiveContinue:
		return "continue"
	case DirectiveHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Outcome is the result of Step.Transform.
type Outcome struct {
	Directive Directive
	Artifacts []Artifact
}

// Continue passes a single artifact into the remaining chain.
func Continue(a Artifact) Outcome {
	return Outcome{Directive: DirectiveContinue, Artifacts: []Artifact{a}}
}

// Halt stops the chain for this branch. The step's own post-hook still runs.
func Halt(artifacts ...Artifact) Outcome {
	return Outcome{Directive: DirectiveHalt, Artifacts: append([]Artifact{}, artifacts...)}
}

// FanOut sends each artifact through the remaining chain independently. An
// empty fan-out drops the branch.
func FanOut(artifacts ...Artifact) Outcome {
	return Outcome{Directive: DirectiveContinue, Artifacts: append([]Artifact{}, artifacts...)}
}

// Step is implemented by every transformation. Embed Base to inherit the
// identity transform and post-hook and override only what the step needs.
type Step interface {
	ID() StepID
	Transform(a Artifact) (Outcome, error)
	AfterTransform(a Artifact) Artifact
}

// Base provides identity defaults for Step.
type Base struct {
	id StepID
}

// NewBase seeds the helper with the step identifier.
func NewBase(id StepID) Base {
	return Base{id: id}
}

// ID implements Step.ID.
func (b Base) ID() StepID {
	return b.id
}

// Transform implements Step.Transform as the identity continue.
func (b Base) Transform(a Artifact) (Outcome, error) {
	return Continue(a), nil
}

// AfterTransform implements Step.AfterTransform as the identity.
func (b Base) AfterTransform(a Artifact) Artifact {
	return a
}
