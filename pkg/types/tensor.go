package types

import "github.com/amdinfer/inference-server/pkg/errors"

// Shape is an ordered sequence of tensor dimensions. The batch dimension is
// implicit in the enclosing request/response and is never part of Shape.
type Shape []int64

// Elements returns the product of all dimensions.
func (s Shape) Elements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Tensor is the shared structure for both inference inputs and outputs.
//
// Data holds either a non-owning slice into a pooled buffer (the common
// case, for requests materialized by the batcher) or an owned byte slice
// (the common case for responses, and for adapters that can't target a
// pool buffer directly). Both are represented as a plain []byte; Go's
// slice semantics make the "non-owning view" and "owned copy" cases
// indistinguishable at the type level.
type Tensor struct {
	Name       string
	Shape      Shape
	Datatype   DataType
	Parameters Parameters
	Data       []byte
}

// ByteLength returns the expected byte length of Data for this tensor's
// shape and datatype, given an explicit batch size (the batch dimension is
// implicit in Shape). Only meaningful for fixed-size types;
// String tensors are length-prefixed per element and have no fixed length.
func (t *Tensor) ByteLength(batchSize int64) int64 {
	if t.Datatype == String {
		return -1
	}
	return batchSize * t.Shape.Elements() * int64(t.Datatype.Size())
}

// Validate checks the fixed-size invariant: product(shape) * size() must
// equal len(Data) for a single-element (batch size 1) tensor. Batched
// tensors inside a Batch are validated against the batch's buffer size
// instead, since a single Tensor here represents one request's slice.
func (t *Tensor) Validate() error {
	if t.Datatype == String {
		return nil
	}
	want := t.ByteLength(1)
	if want >= 0 && int64(len(t.Data)) != want {
		return errors.New(errors.InvalidArgument,
			"tensor %q: expected %d bytes for shape %v datatype %s, got %d",
			t.Name, want, t.Shape, t.Datatype, len(t.Data))
	}
	return nil
}
