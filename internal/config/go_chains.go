package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goChainsFuncName = "Chains"

// LoadGoChainFile evaluates a Go source file and collects the chains it
// declares via Chains() ([]map[string]any, error). Each map uses the same
// keys as a YAML chain entry.
func LoadGoChainFile(path string) (ChainFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return ChainFile{}, fmt.Errorf("config: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return ChainFile{}, fmt.Errorf("config: interpret %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return ChainFile{}, fmt.Errorf("config: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goChainsFuncName)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: %s must define %s() ([]map[string]any, error): %w", path, goChainsFuncName, err)
	}
	raw, err := invokeChainsFunc(fnValue)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: %s: %w", path, err)
	}
	payload, err := yaml.Marshal(map[string]any{"chains": raw})
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: %s: %w", path, err)
	}
	chains, err := ParseChainYAML(payload)
	if err != nil {
		return ChainFile{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return ChainFile{Chains: chains, Path: path}, nil
}

func invokeChainsFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goChainsFuncName)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goChainsFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goChainsFuncName)
	}
	chainsVal := results[0]
	if chains, ok := chainsVal.Interface().([]map[string]any); ok {
		return chains, nil
	}
	if chainsVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goChainsFuncName)
	}
	out := make([]map[string]any, chainsVal.Len())
	for i := range out {
		m, ok := chainsVal.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goChainsFuncName, i)
		}
		out[i] = m
	}
	return out, nil
}
