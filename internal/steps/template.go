package steps

import (
	"bytes"
	"fmt"
	"path"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/kingrea/kiln/internal/pipeline"
)

const (
	delimOpen  = "<%="
	delimClose = "%>"
)

// newTemplate parses text with the EEx-style delimiters, leaving any
// {{ }} markup in scripts and pages alone.
func newTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Delims(delimOpen, delimClose).Option("missingkey=error").Parse(text)
}

// templateData exposes the metadata plus the source path to tmpl. Every
// field tmpl references that is not set renders as the empty string.
func templateData(tmpl *template.Template, a pipeline.Artifact) map[string]any {
	data := make(map[string]any, len(a.Metadata)+1)
	for key, value := range a.Metadata {
		data[key] = value
	}
	data["path"] = a.Path
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			seedNode(data, t.Tree.Root)
		}
	}
	return data
}

func seedNode(data map[string]any, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			seedNode(data, child)
		}
	case *parse.ActionNode:
		seedNode(data, n.Pipe)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			seedNode(data, cmd)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			seedNode(data, arg)
		}
	case *parse.ChainNode:
		seedNode(data, n.Node)
	case *parse.FieldNode:
		seedField(data, n.Ident)
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			seedField(data, n.Ident[1:])
		}
	case *parse.IfNode:
		seedBranch(data, &n.BranchNode)
	case *parse.RangeNode:
		seedBranch(data, &n.BranchNode)
	case *parse.WithNode:
		seedBranch(data, &n.BranchNode)
	case *parse.TemplateNode:
		seedNode(data, n.Pipe)
	}
}

func seedBranch(data map[string]any, b *parse.BranchNode) {
	seedNode(data, b.Pipe)
	seedNode(data, b.List)
	seedNode(data, b.ElseList)
}

// seedField fills the path named by idents with nested maps ending in "".
// Existing nested maps are copied before they are filled.
func seedField(data map[string]any, idents []string) {
	key := idents[0]
	if len(idents) == 1 {
		if data[key] == nil {
			data[key] = ""
		}
		return
	}
	var child map[string]any
	switch v := data[key].(type) {
	case nil:
		child = make(map[string]any)
	case map[string]any:
		child = make(map[string]any, len(v)+1)
		for k, value := range v {
			child[k] = value
		}
	default:
		return
	}
	data[key] = child
	seedField(child, idents[1:])
}

// EEx evaluates <%= %> actions in the content as a text/template over the
// artifact metadata. Unset fields render empty.
type EEx struct {
	pipeline.Base
}

// NewEEx builds the template step.
func NewEEx() *EEx {
	return &EEx{Base: pipeline.NewBase(pipeline.StepEEx)}
}

// Transform implements pipeline.Step.
func (s *EEx) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	if !bytes.Contains(a.Content, []byte(delimOpen)) {
		return pipeline.Continue(a), nil
	}
	tmpl, err := newTemplate(a.Path, string(a.Content))
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: parse template %s: %w", a.Path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData(tmpl, a)); err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: render %s: %w", a.Path, err)
	}
	return pipeline.Continue(a.WithContent(buf.Bytes())), nil
}

// AddLayout wraps the content in the layout named by the layout metadata.
// Layouts use the same <%= %> actions and see the rendered body as .content.
type AddLayout struct {
	pipeline.Base
	fs  billy.Filesystem
	dir string

	mu      sync.Mutex
	layouts map[string]*template.Template
}

// NewAddLayout loads layouts from dir inside fs.
func NewAddLayout(fs billy.Filesystem, dir string) *AddLayout {
	return &AddLayout{
		Base:    pipeline.NewBase(pipeline.StepAddLayout),
		fs:      fs,
		dir:     dir,
		layouts: make(map[string]*template.Template),
	}
}

// Transform implements pipeline.Step.
func (s *AddLayout) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	name := a.MetaString(MetaLayout)
	if name == "" {
		return pipeline.Continue(a), nil
	}
	tmpl, err := s.layout(name)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	data := templateData(tmpl, a)
	data["content"] = string(a.Content)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: layout %s for %s: %w", name, a.Path, err)
	}
	return pipeline.Continue(a.WithContent(buf.Bytes())), nil
}

func (s *AddLayout) layout(name string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl, ok := s.layouts[name]; ok {
		return tmpl, nil
	}
	file := name
	if path.Ext(file) == "" {
		file += ".html"
	}
	data, err := util.ReadFile(s.fs, path.Join(s.dir, file))
	if err != nil {
		return nil, fmt.Errorf("steps: load layout %s: %w", name, err)
	}
	tmpl, err := newTemplate(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("steps: parse layout %s: %w", name, err)
	}
	s.layouts[name] = tmpl
	return tmpl, nil
}
