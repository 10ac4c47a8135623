package steps

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/kingrea/kiln/internal/pipeline"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 12

var renderedExts = map[string]bool{".md": true, ".eex": true, ".slime": true}

// Pagination fans out one artifact per entry of the pages metadata list.
type Pagination struct {
	pipeline.Base
}

// NewPagination builds the pagination step.
func NewPagination() *Pagination {
	return &Pagination{Base: pipeline.NewBase(pipeline.StepPagination)}
}

// Transform implements pipeline.Step.
func (s *Pagination) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	raw, ok := a.Meta(MetaPages)
	if !ok || raw == nil {
		return pipeline.Continue(a), nil
	}
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return pipeline.Continue(a), nil
	}
	pages := make([]pipeline.Artifact, v.Len())
	for i := range pages {
		pages[i] = a.WithMetadata(map[string]any{
			MetaPage:       v.Index(i).Interface(),
			MetaPageNumber: i + 1,
		})
	}
	return pipeline.FanOut(pages...), nil
}

// OutputPath decides where the artifact lands in the output tree.
type OutputPath struct {
	pipeline.Base
}

// NewOutputPath builds the output path step.
func NewOutputPath() *OutputPath {
	return &OutputPath{Base: pipeline.NewBase(pipeline.StepOutputPath)}
}

// Transform implements pipeline.Step.
func (s *OutputPath) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	out := OutputFor(a)
	return pipeline.Continue(a.WithOutputs(pipeline.Output{Path: out}).WithMeta(MetaOutputPath, out)), nil
}

// OutputFor computes the output path: a permalink wins, rendered formats
// become .html, and page N above 1 gets a -N suffix.
func OutputFor(a pipeline.Artifact) string {
	var out string
	if permalink := strings.TrimSpace(a.MetaString(MetaPermalink)); permalink != "" {
		out = strings.TrimPrefix(path.Clean("/"+permalink), "/")
		if strings.HasSuffix(permalink, "/") || out == "" {
			out = path.Join(out, "index.html")
		}
	} else {
		out = filepath.ToSlash(path.Clean(a.Path))
		if ext := path.Ext(out); renderedExts[ext] {
			out = strings.TrimSuffix(out, ext)
			if path.Ext(out) == "" {
				out += ".html"
			}
		}
	}
	if n := pageNumber(a); n > 1 {
		ext := path.Ext(out)
		out = strings.TrimSuffix(out, ext) + "-" + strconv.Itoa(n) + ext
	}
	return out
}

func pageNumber(a pipeline.Artifact) int {
	raw, ok := a.Meta(MetaPageNumber)
	if !ok {
		return 0
	}
	n, _ := raw.(int)
	return n
}

// URLFingerprinting inserts a content digest into every output file name so
// the URL changes whenever the content does.
type URLFingerprinting struct {
	pipeline.Base
}

// NewURLFingerprinting builds the fingerprint step.
func NewURLFingerprinting() *URLFingerprinting {
	return &URLFingerprinting{Base: pipeline.NewBase(pipeline.StepURLFingerprinting)}
}

// Transform implements pipeline.Step.
func (s *URLFingerprinting) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	fp := Fingerprint(a.Content)
	outputs := a.Outputs
	if len(outputs) == 0 {
		outputs = []pipeline.Output{{Path: filepath.ToSlash(a.Path)}}
	}
	rewritten := make([]pipeline.Output, len(outputs))
	for i, out := range outputs {
		ext := path.Ext(out.Path)
		rewritten[i] = pipeline.Output{
			Path:        strings.TrimSuffix(out.Path, ext) + "-" + fp + ext,
			Fingerprint: fp,
		}
	}
	return pipeline.Continue(a.WithOutputs(rewritten...).WithMeta(MetaFingerprint, fp)), nil
}

// Fingerprint returns the first FingerprintLength hex characters of the
// SHA-256 digest of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
