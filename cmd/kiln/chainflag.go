package main

import (
	"fmt"
	"strings"

	"github.com/kingrea/kiln/internal/config"
	"github.com/kingrea/kiln/internal/pipeline"
)

// chainFlag collects repeatable -chain matcher=steps values in order.
type chainFlag []config.ChainConfig

func (c *chainFlag) String() string {
	if c == nil || len(*c) == 0 {
		return ""
	}
	parts := make([]string, len(*c))
	for i, chain := range *c {
		parts[i] = matcherLabel(chain) + "=" + strings.Join(chain.Steps, ",")
	}
	return strings.Join(parts, " ")
}

func (c *chainFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected matcher=steps, got %q", value)
	}
	matcher := strings.TrimSpace(parts[0])
	var chain config.ChainConfig
	switch {
	case strings.HasPrefix(matcher, "~"):
		chain.Pattern = strings.TrimPrefix(matcher, "~")
	case strings.HasPrefix(matcher, "glob:"):
		chain.Glob = strings.TrimPrefix(matcher, "glob:")
	default:
		chain.Ext = matcher
	}
	for _, step := range strings.Split(parts[1], ",") {
		if step = strings.TrimSpace(step); step != "" {
			chain.Steps = append(chain.Steps, step)
		}
	}
	chain = chain.Normalized()
	if err := chain.Validate(); err != nil {
		return err
	}
	*c = append(*c, chain)
	return nil
}

// Entries converts the collected chains into registry entries.
func (c chainFlag) Entries() ([]pipeline.Entry, error) {
	entries := make([]pipeline.Entry, 0, len(c))
	for _, chain := range c {
		entry, err := chain.Entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func matcherLabel(c config.ChainConfig) string {
	switch {
	case c.Pattern != "":
		return "~" + c.Pattern
	case c.Glob != "":
		return "glob:" + c.Glob
	default:
		return c.Ext
	}
}
