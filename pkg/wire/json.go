// Package wire implements the KServe v2 JSON wire schema (spec §6): the
// same request/response shape is reused by the REST, WebSocket, and
// JSON-over-gRPC transports, so the encode/decode logic lives here once
// rather than being duplicated per protocol adapter.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/types"
)

// Tensor is the wire shape of one input or output tensor: a flat JSON
// array for numeric types, or a one-element array containing the string
// for String tensors.
type Tensor struct {
	Name       string          `json:"name"`
	Shape      []int64         `json:"shape"`
	Datatype   string          `json:"datatype"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Request is the wire shape of one inference call.
type Request struct {
	ID         string         `json:"id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Inputs     []Tensor       `json:"inputs"`
	Outputs    []Tensor       `json:"outputs,omitempty"`
}

// Response is the wire shape of one inference reply.
type Response struct {
	ID         string         `json:"id,omitempty"`
	Model      string         `json:"model_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Outputs    []Tensor       `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// DecodeRequest parses a wire Request into the protocol-agnostic
// types.Tensor slices the request adapter needs.
func DecodeRequest(body []byte) (id string, params types.Parameters, inputs, outputs []types.Tensor, err error) {
	var r Request
	if err := json.Unmarshal(body, &r); err != nil {
		return "", nil, nil, nil, errors.Wrap(errors.InvalidArgument, err, "decoding inference request body")
	}

	params = decodeParameters(r.Parameters)

	inputs = make([]types.Tensor, len(r.Inputs))
	for i, t := range r.Inputs {
		tensor, err := DecodeTensor(t)
		if err != nil {
			return "", nil, nil, nil, err
		}
		inputs[i] = tensor
	}

	outputs = make([]types.Tensor, len(r.Outputs))
	for i, t := range r.Outputs {
		tensor, err := DecodeTensor(t)
		if err != nil {
			return "", nil, nil, nil, err
		}
		outputs[i] = tensor
	}

	return r.ID, params, inputs, outputs, nil
}

// DecodeTensor parses one wire Tensor into its types.Tensor equivalent.
func DecodeTensor(t Tensor) (types.Tensor, error) {
	dt, err := types.ParseDataType(t.Datatype)
	if err != nil {
		return types.Tensor{}, err
	}

	data, err := decodeData(dt, t.Data)
	if err != nil {
		return types.Tensor{}, errors.Wrap(errors.InvalidArgument, err, "tensor %q", t.Name)
	}

	return types.Tensor{
		Name:       t.Name,
		Shape:      types.Shape(t.Shape),
		Datatype:   dt,
		Parameters: decodeParameters(t.Parameters),
		Data:       data,
	}, nil
}

// decodeData parses the JSON array per spec §6 into its native
// little-endian byte representation (or raw bytes, for String).
func decodeData(dt types.DataType, raw json.RawMessage) ([]byte, error) {
	if dt == types.String {
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
		if len(values) != 1 {
			return nil, errors.New(errors.InvalidArgument, "string tensor data must be a single-element array")
		}
		return []byte(values[0]), nil
	}

	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(values)*dt.Size())
	for _, v := range values {
		buf = appendElement(buf, dt, v)
	}
	return buf, nil
}

func appendElement(buf []byte, dt types.DataType, v float64) []byte {
	switch dt {
	case types.Bool:
		b := byte(0)
		if v != 0 {
			b = 1
		}
		return append(buf, b)
	case types.U8:
		return append(buf, byte(uint8(v)))
	case types.I8:
		return append(buf, byte(int8(v)))
	case types.U16:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case types.I16:
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v)))
	case types.U32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	case types.I32:
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v)))
	case types.F32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	case types.U64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v))
	case types.I64:
		return binary.LittleEndian.AppendUint64(buf, uint64(int64(v)))
	case types.F64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	default:
		return buf
	}
}

func decodeParameters(m map[string]any) types.Parameters {
	params := types.NewParameters()
	for k, v := range m {
		switch val := v.(type) {
		case bool:
			params.PutBool(k, val)
		case float64:
			params.PutDouble(k, val)
		case string:
			params.PutString(k, val)
		}
	}
	return params
}

// EncodeResponse converts a types.Response into its wire shape.
func EncodeResponse(resp *types.Response) *Response {
	out := &Response{
		ID:    resp.ID,
		Model: resp.Model,
		Error: resp.Error,
	}
	if resp.Parameters != nil {
		out.Parameters = encodeParameters(resp.Parameters)
	}
	out.Outputs = make([]Tensor, len(resp.Outputs))
	for i, t := range resp.Outputs {
		out.Outputs[i] = encodeTensor(t)
	}
	return out
}

func encodeTensor(t types.Tensor) Tensor {
	data, err := encodeData(t.Datatype, t.Data)
	if err != nil {
		data = json.RawMessage("null")
	}
	return Tensor{
		Name:       t.Name,
		Shape:      []int64(t.Shape),
		Datatype:   t.Datatype.String(),
		Parameters: encodeParameters(t.Parameters),
		Data:       data,
	}
}

func encodeData(dt types.DataType, raw []byte) (json.RawMessage, error) {
	if dt == types.String {
		b, err := json.Marshal([]string{string(raw)})
		return b, err
	}

	size := dt.Size()
	if size == 0 || len(raw)%size != 0 {
		return nil, errors.New(errors.Runtime, "tensor data length %d is not a multiple of element size %d", len(raw), size)
	}

	values := make([]float64, len(raw)/size)
	for i := range values {
		values[i] = readElement(dt, raw[i*size:(i+1)*size])
	}
	return json.Marshal(values)
}

func readElement(dt types.DataType, b []byte) float64 {
	switch dt {
	case types.Bool:
		if b[0] != 0 {
			return 1
		}
		return 0
	case types.U8:
		return float64(b[0])
	case types.I8:
		return float64(int8(b[0]))
	case types.U16:
		return float64(binary.LittleEndian.Uint16(b))
	case types.I16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case types.U32:
		return float64(binary.LittleEndian.Uint32(b))
	case types.I32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case types.F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case types.U64:
		return float64(binary.LittleEndian.Uint64(b))
	case types.I64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case types.F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}

func encodeParameters(params types.Parameters) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, p := range params {
		switch p.Kind {
		case types.ParamBool:
			out[k] = p.Bool
		case types.ParamInt32:
			out[k] = p.Int32
		case types.ParamDouble:
			out[k] = p.Double
		case types.ParamString:
			out[k] = p.String
		}
	}
	return out
}
