package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrReportNotFound is returned when no build has been recorded yet.
var ErrReportNotFound = errors.New("build: report not found")

// Repository stores the most recent build report as JSON.
type Repository struct {
	path string
}

// NewRepository stores reports under dir.
func NewRepository(dir string) *Repository {
	return &Repository{path: filepath.Join(dir, "last-build.json")}
}

// Path returns the report location.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted report if present.
func (r *Repository) Load() (Report, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, fmt.Errorf("build: read report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("build: decode report: %w", err)
	}
	return report, nil
}

// Save writes the report to disk.
func (r *Repository) Save(report Report) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("build: encode report: %w", err)
	}
	return os.WriteFile(r.path, append(encoded, '\n'), 0o644)
}
