package pipeline

// Output describes one file a step chain intends to produce for an artifact.
type Output struct {
	Path        string
	Fingerprint string
}

// Artifact is the unit flowing through a chain. It is treated as immutable:
// steps derive new values with the With* helpers instead of editing the
// metadata map in place. Path is the originating source path and must never
// change while the artifact is inside the pipeline.
type Artifact struct {
	Path     string
	Content  []byte
	Metadata map[string]any
	Outputs  []Output
}

// NewArtifact seeds an artifact for a source path.
func NewArtifact(path string, content []byte) Artifact {
	return Artifact{Path: path, Content: content}
}

// Clone returns a copy that shares no maps or slices with the receiver.
func (a Artifact) Clone() Artifact {
	clone := Artifact{Path: a.Path}
	if a.Content != nil {
		clone.Content = append([]byte{}, a.Content...)
	}
	clone.Metadata = cloneMetadata(a.Metadata)
	if len(a.Outputs) > 0 {
		clone.Outputs = append([]Output{}, a.Outputs...)
	}
	return clone
}

// WithContent returns a copy carrying new content.
func (a Artifact) WithContent(content []byte) Artifact {
	a.Content = content
	return a
}

// WithMeta returns a copy with key set in a fresh metadata map.
func (a Artifact) WithMeta(key string, value any) Artifact {
	meta := cloneMetadata(a.Metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta[key] = value
	a.Metadata = meta
	return a
}

// WithMetadata returns a copy with every entry of values merged over the
// existing metadata.
func (a Artifact) WithMetadata(values map[string]any) Artifact {
	if len(values) == 0 {
		return a
	}
	meta := cloneMetadata(a.Metadata)
	if meta == nil {
		meta = make(map[string]any, len(values))
	}
	for key, value := range values {
		meta[key] = value
	}
	a.Metadata = meta
	return a
}

// WithOutputs returns a copy whose output descriptors are replaced.
func (a Artifact) WithOutputs(outputs ...Output) Artifact {
	a.Outputs = append([]Output{}, outputs...)
	return a
}

// Meta looks up a metadata value.
func (a Artifact) Meta(key string) (any, bool) {
	if a.Metadata == nil {
		return nil, false
	}
	value, ok := a.Metadata[key]
	return value, ok
}

// MetaString returns a metadata value when it is a string.
func (a Artifact) MetaString(key string) string {
	value, ok := a.Meta(key)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

func cloneMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		out[key] = value
	}
	return out
}
