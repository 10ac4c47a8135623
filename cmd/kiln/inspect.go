package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kingrea/kiln/internal/build"
	"github.com/kingrea/kiln/internal/pipeline"
)

// printChains lists the registry in scan order followed by every registered
// step id.
func printChains(w io.Writer, p *pipeline.Pipeline) {
	for _, entry := range p.Registry().Entries() {
		fmt.Fprintf(w, "%-24s %s\n", entry.Matcher.String(), entry.Chain)
	}
	ids := p.Steps().IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	fmt.Fprintf(w, "steps: %s\n", strings.Join(names, ", "))
}

// printLastBuild summarises the report persisted by the previous run.
func printLastBuild(w io.Writer, repo *build.Repository) error {
	report, err := repo.Load()
	if errors.Is(err, build.ErrReportNotFound) {
		fmt.Fprintln(w, "no previous build")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "build %s at %s: %d paths, %d outputs, %d misses, %d failures in %s\n",
		report.RunID, report.StartedAt.Format(time.RFC3339), len(report.Results),
		report.Outputs(), report.Misses(), report.Failed(), report.Duration())
	for _, res := range report.Failures() {
		fmt.Fprintf(w, "  FAIL %s [%s]: %s\n", res.Path, res.Step, res.Error)
	}
	return nil
}
