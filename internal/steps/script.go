package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kingrea/kiln/internal/pipeline"
)

const scriptFuncName = "Transform"

// ScriptFunc is the signature a script step file must declare as Transform.
// A nil content return keeps the current content.
type ScriptFunc func(path string, content []byte, meta map[string]any) ([]byte, map[string]any, error)

// Script is a user step interpreted from a Go source file. Its identifier is
// the file name without the .go extension.
type Script struct {
	pipeline.Base
	source string

	mu sync.Mutex
	fn ScriptFunc
}

// LoadScript interprets the file at path.
func LoadScript(path string) (*Script, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("steps: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("steps: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("steps: interpret %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("steps: interpret %s: %w", path, err)
	}
	value, err := i.Eval(scriptFuncName)
	if err != nil {
		return nil, fmt.Errorf("steps: %s must define %s(path string, content []byte, meta map[string]any) ([]byte, map[string]any, error): %w", path, scriptFuncName, err)
	}
	fn, err := scriptFunc(value)
	if err != nil {
		return nil, fmt.Errorf("steps: %s: %w", path, err)
	}
	id := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return &Script{Base: pipeline.NewBase(pipeline.StepID(id)), source: path, fn: fn}, nil
}

func scriptFunc(value reflect.Value) (ScriptFunc, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", scriptFuncName)
	}
	if fn, ok := value.Interface().(func(string, []byte, map[string]any) ([]byte, map[string]any, error)); ok {
		return fn, nil
	}
	if value.Type().NumIn() != 3 || value.Type().NumOut() != 3 {
		return nil, fmt.Errorf("%s has the wrong signature %s", scriptFuncName, value.Type())
	}
	return func(path string, content []byte, meta map[string]any) ([]byte, map[string]any, error) {
		out := value.Call([]reflect.Value{reflect.ValueOf(path), reflect.ValueOf(content), reflect.ValueOf(meta)})
		body, _ := out[0].Interface().([]byte)
		values, _ := out[1].Interface().(map[string]any)
		err, _ := out[2].Interface().(error)
		return body, values, err
	}, nil
}

// Source returns the file the script was loaded from.
func (s *Script) Source() string {
	return s.source
}

// Transform implements pipeline.Step. Calls into one interpreter are
// serialised.
func (s *Script) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	s.mu.Lock()
	content, meta, err := s.fn(a.Path, a.Content, templateData(template.New(a.Path), a))
	s.mu.Unlock()
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: script %s on %s: %w", s.ID(), a.Path, err)
	}
	out := a
	if content != nil {
		out = out.WithContent(content)
	}
	delete(meta, "path")
	return pipeline.Continue(out.WithMetadata(meta)), nil
}

// LoadScriptDir loads every *.go file in dir, sorted by name. A missing
// directory yields no scripts.
func LoadScriptDir(dir string) ([]*Script, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("steps: read %s: %w", trimmed, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".go" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	scripts := make([]*Script, 0, len(names))
	for _, name := range names {
		script, err := LoadScript(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// RegisterScripts loads the scripts in dir into set. A script whose name
// collides with a registered step is an error.
func RegisterScripts(set *pipeline.StepSet, dir string) error {
	scripts, err := LoadScriptDir(dir)
	if err != nil {
		return err
	}
	for _, script := range scripts {
		if err := set.Register(script); err != nil {
			return fmt.Errorf("steps: register %s: %w", script.Source(), err)
		}
	}
	return nil
}
