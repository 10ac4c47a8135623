package steps

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/kingrea/kiln/internal/pipeline"
)

const jpegQuality = 85

// Image records the source dimensions and, when widths are configured, fans
// out one resized variant per width narrower than the source. The original
// always comes first.
type Image struct {
	pipeline.Base
	widths []int
}

// NewImage renders the given extra widths. Duplicates and non-positive
// widths are dropped.
func NewImage(widths []int) *Image {
	seen := make(map[int]bool, len(widths))
	var clean []int
	for _, w := range widths {
		if w > 0 && !seen[w] {
			seen[w] = true
			clean = append(clean, w)
		}
	}
	sort.Ints(clean)
	return &Image{Base: pipeline.NewBase(pipeline.StepImage), widths: clean}
}

// Transform implements pipeline.Step.
func (s *Image) Transform(a pipeline.Artifact) (pipeline.Outcome, error) {
	media := mimetype.Detect(a.Content).String()
	if media != "image/jpeg" && media != "image/png" {
		return pipeline.Outcome{}, fmt.Errorf("%w: %s is %s", ErrUnsupportedFormat, a.Path, media)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.Content))
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: decode %s: %w", a.Path, err)
	}
	original := a.WithMetadata(map[string]any{MetaWidth: cfg.Width, MetaHeight: cfg.Height})

	var targets []int
	for _, w := range s.widths {
		if w < cfg.Width {
			targets = append(targets, w)
		}
	}
	if len(targets) == 0 {
		return pipeline.Continue(original), nil
	}

	src, _, err := image.Decode(bytes.NewReader(a.Content))
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("steps: decode %s: %w", a.Path, err)
	}
	variants := []pipeline.Artifact{original}
	for _, w := range targets {
		h := cfg.Height * w / cfg.Width
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		encoded, err := encodeImage(media, dst)
		if err != nil {
			return pipeline.Outcome{}, fmt.Errorf("steps: encode %s at %dw: %w", a.Path, w, err)
		}
		variant := original.
			WithContent(encoded).
			WithMetadata(map[string]any{MetaWidth: w, MetaHeight: h}).
			WithOutputs(widthOutputs(original.Outputs, a.Path, w)...)
		variants = append(variants, variant)
	}
	return pipeline.FanOut(variants...), nil
}

func encodeImage(media string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if media == "image/png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	return buf.Bytes(), err
}

// widthOutputs suffixes each output name with -<w>w.
func widthOutputs(outputs []pipeline.Output, source string, w int) []pipeline.Output {
	if len(outputs) == 0 {
		outputs = []pipeline.Output{{Path: source}}
	}
	out := make([]pipeline.Output, len(outputs))
	for i, o := range outputs {
		ext := path.Ext(o.Path)
		out[i] = pipeline.Output{Path: strings.TrimSuffix(o.Path, ext) + "-" + strconv.Itoa(w) + "w" + ext}
	}
	return out
}
