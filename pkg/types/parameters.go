package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/amdinfer/inference-server/pkg/errors"
)

// ParamKind tags the value held by a Param. The numeric values match the
// original C++ std::variant<bool, int32_t, double, std::string> index
// order, which is also the wire type-tag used by Serialize/Deserialize.
type ParamKind uint8

const (
	ParamBool ParamKind = iota
	ParamInt32
	ParamDouble
	ParamString
)

// Param is a single tagged-union parameter value.
type Param struct {
	Kind   ParamKind
	Bool   bool
	Int32  int32
	Double float64
	String string
}

func BoolParam(v bool) Param     { return Param{Kind: ParamBool, Bool: v} }
func Int32Param(v int32) Param   { return Param{Kind: ParamInt32, Int32: v} }
func DoubleParam(v float64) Param { return Param{Kind: ParamDouble, Double: v} }
func StringParam(v string) Param { return Param{Kind: ParamString, String: v} }

// Equal reports whether two Params carry the same kind and value.
func (p Param) Equal(o Param) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case ParamBool:
		return p.Bool == o.Bool
	case ParamInt32:
		return p.Int32 == o.Int32
	case ParamDouble:
		return p.Double == o.Double
	case ParamString:
		return p.String == o.String
	default:
		return false
	}
}

// valueSize returns the number of wire bytes a value of this kind occupies,
// matching the original's sizeof(param) for fixed types.
func (p Param) valueSize() int {
	switch p.Kind {
	case ParamBool:
		return 1
	case ParamInt32:
		return 4
	case ParamDouble:
		return 8
	case ParamString:
		return len(p.String)
	default:
		return 0
	}
}

// Parameters is a string-keyed map of tagged values, used both for
// per-call request options and worker load-time configuration.
type Parameters map[string]Param

// NewParameters returns an empty Parameters map.
func NewParameters() Parameters { return make(Parameters) }

func (p Parameters) PutBool(key string, v bool)      { p[key] = BoolParam(v) }
func (p Parameters) PutInt32(key string, v int32)    { p[key] = Int32Param(v) }
func (p Parameters) PutDouble(key string, v float64) { p[key] = DoubleParam(v) }
func (p Parameters) PutString(key string, v string)  { p[key] = StringParam(v) }

func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Parameters) Erase(key string) { delete(p, key) }

// Equal reports whether two Parameters maps have identical keys and values.
func (p Parameters) Equal(o Parameters) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// sortedKeys returns the map's keys in sorted order, for deterministic
// iteration (serialization, dedup keys).
func (p Parameters) sortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns a canonical string encoding of the map suitable for use as a
// Go map key (Parameters itself, being a map, is not comparable). Two
// Parameters with the same keys/kinds/values produce the same Key
// regardless of original insertion order. The endpoint registry's dedup
// does not call Key; it compares parameter sets with Equal.
func (p Parameters) Key() string {
	var buf bytes.Buffer
	for _, k := range p.sortedKeys() {
		v := p[k]
		fmt.Fprintf(&buf, "%d:%s=", v.Kind, k)
		switch v.Kind {
		case ParamBool:
			fmt.Fprintf(&buf, "%t", v.Bool)
		case ParamInt32:
			fmt.Fprintf(&buf, "%d", v.Int32)
		case ParamDouble:
			fmt.Fprintf(&buf, "%g", v.Double)
		case ParamString:
			fmt.Fprintf(&buf, "%q", v.String)
		}
		buf.WriteByte(';')
	}
	return buf.String()
}

// SerializeSize returns the exact number of bytes Serialize will write.
func (p Parameters) SerializeSize() int {
	// 1 count usize, plus 3 usizes (tag, keylen, vallen) per entry.
	size := (len(p)*3 + 1) * 8
	for k, v := range p {
		size += len(k) + v.valueSize()
	}
	return size
}

// Serialize writes the parameter map using the worker-FFI-boundary wire
// encoding from spec §6: a usize count, then per-entry (type-tag,
// key-length, value-length) usize triples for every entry, then the
// concatenated key bytes followed by value bytes for every entry, in the
// same iteration order as the headers.
func (p Parameters) Serialize(w io.Writer) error {
	keys := p.sortedKeys()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		v := p[k]
		if err := binary.Write(w, binary.LittleEndian, uint64(v.Kind)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(k))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(v.valueSize())); err != nil {
			return err
		}
	}
	for _, k := range keys {
		v := p[k]
		if _, err := w.Write([]byte(k)); err != nil {
			return err
		}
		switch v.Kind {
		case ParamBool:
			b := byte(0)
			if v.Bool {
				b = 1
			}
			if _, err := w.Write([]byte{b}); err != nil {
				return err
			}
		case ParamInt32:
			if err := binary.Write(w, binary.LittleEndian, v.Int32); err != nil {
				return err
			}
		case ParamDouble:
			if err := binary.Write(w, binary.LittleEndian, v.Double); err != nil {
				return err
			}
		case ParamString:
			if _, err := w.Write([]byte(v.String)); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeserializeParameters reads the wire encoding Serialize produces.
func DeserializeParameters(r io.Reader) (Parameters, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(errors.Runtime, err, "reading parameter count")
	}
	type header struct {
		kind   ParamKind
		keyLen uint64
		valLen uint64
	}
	headers := make([]header, count)
	for i := range headers {
		var tag, keyLen, valLen uint64
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return nil, errors.Wrap(errors.Runtime, err, "reading parameter tag")
		}
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, errors.Wrap(errors.Runtime, err, "reading parameter key length")
		}
		if err := binary.Read(r, binary.LittleEndian, &valLen); err != nil {
			return nil, errors.Wrap(errors.Runtime, err, "reading parameter value length")
		}
		headers[i] = header{kind: ParamKind(tag), keyLen: keyLen, valLen: valLen}
	}

	params := NewParameters()
	for _, h := range headers {
		keyBytes := make([]byte, h.keyLen)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, errors.Wrap(errors.Runtime, err, "reading parameter key")
		}
		key := string(keyBytes)

		valBytes := make([]byte, h.valLen)
		if _, err := io.ReadFull(r, valBytes); err != nil {
			return nil, errors.Wrap(errors.Runtime, err, "reading parameter value")
		}

		switch h.kind {
		case ParamBool:
			params[key] = BoolParam(valBytes[0] != 0)
		case ParamInt32:
			params[key] = Int32Param(int32(binary.LittleEndian.Uint32(valBytes)))
		case ParamDouble:
			bits := binary.LittleEndian.Uint64(valBytes)
			params[key] = DoubleParam(math.Float64frombits(bits))
		case ParamString:
			params[key] = StringParam(string(valBytes))
		default:
			return nil, errors.New(errors.InvalidArgument, "unknown parameter tag %d", h.kind)
		}
	}
	return params, nil
}
