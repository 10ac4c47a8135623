package steps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/kiln/internal/pipeline"
)

const shoutSource = `package main

import "strings"

func Transform(path string, content []byte, meta map[string]any) ([]byte, map[string]any, error) {
	return []byte(strings.ToUpper(string(content))), map[string]any{"shouted": path}, nil
}`

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestScriptStepTransforms(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "Shout.go", shoutSource)
	set := pipeline.NewStepSet()
	if err := RegisterScripts(set, dir); err != nil {
		t.Fatalf("RegisterScripts returned error: %v", err)
	}
	step, ok := set.Lookup("shout")
	if !ok {
		t.Fatalf("expected script registered as shout, have %v", set.IDs())
	}
	outcome, err := step.Transform(pipeline.NewArtifact("a.txt", []byte("hi")))
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	got := outcome.Artifacts[0]
	if string(got.Content) != "HI" || got.MetaString("shouted") != "a.txt" {
		t.Fatalf("unexpected artifact %+v", got)
	}
}

func TestRegisterScriptsRejectsCollisions(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "save.go", shoutSource)
	set := pipeline.NewStepSet()
	set.MustRegister(NewSave(nil))
	if err := RegisterScripts(set, dir); err == nil {
		t.Fatalf("expected collision with the save step")
	}
}

func TestLoadScriptRequiresTransform(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "empty.go", "package main\n")
	if _, err := LoadScript(filepath.Join(dir, "empty.go")); err == nil {
		t.Fatalf("expected error for missing Transform")
	}
	scripts, err := LoadScriptDir(filepath.Join(dir, "missing"))
	if err != nil || scripts != nil {
		t.Fatalf("expected nothing for a missing dir, got %v %v", scripts, err)
	}
}
