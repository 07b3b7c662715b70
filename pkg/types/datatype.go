// Package types defines the wire-agnostic data model shared by every
// component of the inference pipeline: primitive data types, tensors,
// parameters, and model metadata.
package types

import (
	"strings"

	"github.com/amdinfer/inference-server/pkg/errors"
)

// DataType is the closed enum of primitive tensor element types.
type DataType uint8

const (
	Bool DataType = iota
	U8
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F16
	F32
	F64
	String
	Unknown
)

// Size returns the byte size of one element of this type. String is
// variable-length; callers must not use Size for String tensors to compute
// a fixed byte length.
func (d DataType) Size() int {
	switch d {
	case Bool, U8, I8:
		return 1
	case U16, I16, F16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

// String returns the canonical uppercase wire name for the type (e.g.
// "FP32"), as required by the KServe v2 schema.
func (d DataType) String() string {
	switch d {
	case Bool:
		return "BOOL"
	case U8:
		return "UINT8"
	case U16:
		return "UINT16"
	case U32:
		return "UINT32"
	case U64:
		return "UINT64"
	case I8:
		return "INT8"
	case I16:
		return "INT16"
	case I32:
		return "INT32"
	case I64:
		return "INT64"
	case F16:
		return "FP16"
	case F32:
		return "FP32"
	case F64:
		return "FP64"
	case String:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ParseDataType maps a wire-format name back to a DataType. It accepts the
// canonical uppercase form as well as the lower/title-cased forms some
// clients send.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(s) {
	case "BOOL":
		return Bool, nil
	case "UINT8":
		return U8, nil
	case "UINT16":
		return U16, nil
	case "UINT32":
		return U32, nil
	case "UINT64":
		return U64, nil
	case "INT8":
		return I8, nil
	case "INT16":
		return I16, nil
	case "INT32":
		return I32, nil
	case "INT64":
		return I64, nil
	case "FP16":
		return F16, nil
	case "FP32":
		return F32, nil
	case "FP64":
		return F64, nil
	case "STRING":
		return String, nil
	default:
		return Unknown, errors.New(errors.InvalidArgument, "unknown datatype %q", s)
	}
}
