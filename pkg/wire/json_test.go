package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/types"
)

func TestDecodeRequestNumericRoundTrip(t *testing.T) {
	body := []byte(`{
		"id": "req-1",
		"inputs": [
			{"name": "x", "shape": [2], "datatype": "FP32", "data": [1.5, 2.5]}
		],
		"outputs": [
			{"name": "y", "shape": [1], "datatype": "FP32", "data": []}
		]
	}`)

	id, _, inputs, outputs, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "req-1", id)
	require.Len(t, inputs, 1)
	assert.Equal(t, types.F32, inputs[0].Datatype)
	assert.Equal(t, 8, len(inputs[0].Data))
	require.Len(t, outputs, 1)
}

func TestDecodeRequestStringTensor(t *testing.T) {
	body := []byte(`{"inputs": [{"name": "s", "shape": [1], "datatype": "STRING", "data": ["hello"]}]}`)

	_, _, inputs, _, err := DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(inputs[0].Data))
}

func TestDecodeRequestUnknownDatatypeFails(t *testing.T) {
	body := []byte(`{"inputs": [{"name": "x", "shape": [1], "datatype": "BOGUS", "data": [1]}]}`)
	_, _, _, _, err := DecodeRequest(body)
	assert.Error(t, err)
}

func TestEncodeResponseNumericRoundTrip(t *testing.T) {
	resp := &types.Response{
		ID:    "req-1",
		Model: "simulation",
		Outputs: []types.Tensor{
			{Name: "y", Shape: types.Shape{2}, Datatype: types.F32, Data: appendFloat32(nil, 1.5, 2.5)},
		},
	}

	out := EncodeResponse(resp)
	assert.Equal(t, "req-1", out.ID)
	require.Len(t, out.Outputs, 1)
	assert.JSONEq(t, `[1.5,2.5]`, string(out.Outputs[0].Data))
}

func appendFloat32(buf []byte, vs ...float64) []byte {
	for _, v := range vs {
		buf = appendElement(buf, types.F32, v)
	}
	return buf
}
