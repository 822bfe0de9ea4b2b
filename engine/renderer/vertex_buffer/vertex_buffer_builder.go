package vertex_buffer

import "github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"

// VertexBufferBuilderOption is a functional option applied to a vertex buffer during construction
// via NewVertexBuffer.
type VertexBufferBuilderOption func(*vertexBuffer)

// WithLabel sets the label prefix of every stream.
//
// Parameters:
//   - label: the label, usually the model name
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the label option
func WithLabel(label string) VertexBufferBuilderOption {
	return func(vb *vertexBuffer) {
		if label != "" {
			vb.label = label
		}
	}
}

// WithSharedDynamicStream allocates the dynamic stream as a SharedBuffer registered with acc, so a
// skinning kernel can write it in place.
//
// Parameters:
//   - acc: an available accelerator bound to the same device
//
// Returns:
//   - VertexBufferBuilderOption: a function that applies the shared stream option
func WithSharedDynamicStream(acc accelerator.Accelerator) VertexBufferBuilderOption {
	return func(vb *vertexBuffer) {
		vb.acc = acc
	}
}
