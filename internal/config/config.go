// internal/config/config.go
//
// This package handles kiln.yaml and the .kiln directory. Every project that
// uses kiln gets a .kiln/ folder next to its kiln.yaml for logs and extra
// chain definitions.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// KilnDir is the name of the directory we create in each project
	KilnDir = ".kiln"
	// FileName is the project configuration file at the project root
	FileName = "kiln.yaml"

	defaultSourceDir  = "site"
	defaultOutputDir  = "_site"
	defaultLayoutsDir = "_layouts"
	defaultChainsDir  = ".kiln/chains"
	defaultStepsDir   = ".kiln/steps"
)

const defaultProjectConfigYAML = `# kiln project configuration
version: 1

# Source tree and build output, relative to this file.
source: site
output: _site

# Layout templates, relative to the source tree.
layouts: _layouts

# Concurrent dispatches. Zero means one per CPU.
workers: 0

# Extra image widths generated next to every jpg/png.
# image_widths: [480, 960]

# Script steps (Go files declaring Transform) are loaded from steps_dir and
# chain files (*.yaml, or Go files declaring Chains) from chains_dir.
# steps_dir: .kiln/steps
# chains_dir: .kiln/chains

# Chains are tried in order before the built-in table; the first match wins.
# Each entry needs exactly one of ext, pattern (regular expression) or glob.
# chains:
#   - glob: "*.scss"
#     steps: [add_content, css_minify, output_path, save]
`

// ChainConfig declares one user chain entry.
type ChainConfig struct {
	Ext     string   `yaml:"ext,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
	Glob    string   `yaml:"glob,omitempty"`
	Steps   []string `yaml:"steps"`
}

// ProjectConfig models kiln.yaml.
type ProjectConfig struct {
	Version     int           `yaml:"version"`
	Source      string        `yaml:"source"`
	Output      string        `yaml:"output"`
	Layouts     string        `yaml:"layouts"`
	Workers     int           `yaml:"workers"`
	ImageWidths []int         `yaml:"image_widths,omitempty"`
	Chains      []ChainConfig `yaml:"chains,omitempty"`
	ChainsDir   string        `yaml:"chains_dir,omitempty"`
	StepsDir    string        `yaml:"steps_dir,omitempty"`
}

// Config holds the runtime configuration for kiln.
type Config struct {
	// ProjectDir is the directory holding kiln.yaml
	ProjectDir string

	// KilnProjectDir is ProjectDir/.kiln
	KilnProjectDir string

	Project ProjectConfig

	// ChainFiles are the extra chain definitions found under ChainsDir.
	ChainFiles []ChainFile
}

// InitProjectDir creates the .kiln directory structure and a default
// kiln.yaml when none exists.
//
// Structure created:
// .kiln/
// ├── logs/     <- build logbook and last build report
// ├── chains/   <- extra chain definitions (*.yaml, *.go)
// └── steps/    <- script steps (*.go)
func InitProjectDir(projectDir string) error {
	kilnDir := filepath.Join(projectDir, KilnDir)
	dirs := []string{
		filepath.Join(kilnDir, "logs"),
		filepath.Join(kilnDir, "chains"),
		filepath.Join(kilnDir, "steps"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(projectDir, FileName))
}

// NewConfig loads kiln.yaml (defaults when missing) and the chain files.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:     projectDir,
		KilnProjectDir: filepath.Join(projectDir, KilnDir),
		Project:        defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	files, err := LoadChainDir(cfg.ChainsDir())
	if err != nil {
		return nil, err
	}
	cfg.ChainFiles = files
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ProjectDir, FileName)
}

// SourceDir returns the absolute source tree.
func (c *Config) SourceDir() string {
	return resolvePath(c.ProjectDir, c.Project.Source)
}

// OutputDir returns the absolute build output directory.
func (c *Config) OutputDir() string {
	return resolvePath(c.ProjectDir, c.Project.Output)
}

// LayoutsDir returns the layouts directory relative to the source tree.
func (c *Config) LayoutsDir() string {
	return filepath.ToSlash(filepath.Clean(c.Project.Layouts))
}

// SkipDirs returns the directories of the source tree that are not built:
// the layouts directory, and the output directory when it lies inside the
// source tree.
func (c *Config) SkipDirs() []string {
	dirs := []string{c.LayoutsDir()}
	rel, err := filepath.Rel(c.SourceDir(), c.OutputDir())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return dirs
	}
	return append(dirs, filepath.ToSlash(rel))
}

// ChainsDir returns the absolute directory scanned for chain files.
func (c *Config) ChainsDir() string {
	return resolvePath(c.ProjectDir, c.Project.ChainsDir)
}

// StepsDir returns the absolute directory scanned for script steps.
func (c *Config) StepsDir() string {
	return resolvePath(c.ProjectDir, c.Project.StepsDir)
}

// ReportDir returns where build reports are kept.
func (c *Config) ReportDir() string {
	return filepath.Join(c.KilnProjectDir, "logs")
}

// LogPath returns the logbook location.
func (c *Config) LogPath() string {
	return filepath.Join(c.KilnProjectDir, "logs", "kiln.log")
}

// Workers returns the number of concurrent dispatches.
func (c *Config) Workers() int {
	return c.Project.Workers
}

// AllChains returns inline chains followed by chain-file chains in file order.
func (c *Config) AllChains() []ChainConfig {
	out := append([]ChainConfig{}, c.Project.Chains...)
	for _, file := range c.ChainFiles {
		out = append(out, file.Chains...)
	}
	return out
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Source) == "" {
		pc.Source = defaultSourceDir
	}
	if strings.TrimSpace(pc.Output) == "" {
		pc.Output = defaultOutputDir
	}
	if strings.TrimSpace(pc.Layouts) == "" {
		pc.Layouts = defaultLayoutsDir
	}
	if strings.TrimSpace(pc.ChainsDir) == "" {
		pc.ChainsDir = defaultChainsDir
	}
	if strings.TrimSpace(pc.StepsDir) == "" {
		pc.StepsDir = defaultStepsDir
	}
	if pc.Workers <= 0 {
		pc.Workers = runtime.NumCPU()
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Source = strings.TrimSpace(pc.Source)
	pc.Output = strings.TrimSpace(pc.Output)
	pc.Layouts = strings.TrimSpace(pc.Layouts)
	pc.ChainsDir = strings.TrimSpace(pc.ChainsDir)
	pc.StepsDir = strings.TrimSpace(pc.StepsDir)
	for i := range pc.Chains {
		pc.Chains[i] = pc.Chains[i].Normalized()
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if filepath.Clean(pc.Source) == filepath.Clean(pc.Output) {
		return fmt.Errorf("source and output must differ")
	}
	for _, width := range pc.ImageWidths {
		if width <= 0 {
			return fmt.Errorf("image_widths must be positive, got %d", width)
		}
	}
	for i := range pc.Chains {
		if err := pc.Chains[i].Validate(); err != nil {
			return fmt.Errorf("chains[%d]: %w", i, err)
		}
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
