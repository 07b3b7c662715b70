package types

import "sync/atomic"

// TensorMetadata declares one input or output tensor a worker expects or
// produces: its name, element type, and shape (batch dimension excluded).
type TensorMetadata struct {
	Name     string
	Datatype DataType
	Shape    Shape
}

// ModelMetadata describes a loaded worker's model: its platform tag and
// the input/output tensors it declares. Ready flips to true after a
// successful Acquire and back to false on Release (spec §3).
type ModelMetadata struct {
	Name     string
	Platform string
	Inputs   []TensorMetadata
	Outputs  []TensorMetadata

	ready atomic.Bool
}

// NewModelMetadata constructs metadata for a not-yet-ready model.
func NewModelMetadata(name, platform string) *ModelMetadata {
	return &ModelMetadata{Name: name, Platform: platform}
}

// SetReady flips the ready flag. Acquire sets it true; Release sets it
// false. It is a single atomic boolean per worker (spec §5).
func (m *ModelMetadata) SetReady(ready bool) { m.ready.Store(ready) }

// Ready reports whether the model is currently ready to serve inference.
func (m *ModelMetadata) Ready() bool { return m.ready.Load() }

// Clone returns a value copy of the metadata (without the atomic), safe to
// hand out to callers outside the owning worker.
func (m *ModelMetadata) Clone() ModelMetadata {
	out := ModelMetadata{
		Name:     m.Name,
		Platform: m.Platform,
		Inputs:   append([]TensorMetadata(nil), m.Inputs...),
		Outputs:  append([]TensorMetadata(nil), m.Outputs...),
	}
	out.ready.Store(m.Ready())
	return out
}
