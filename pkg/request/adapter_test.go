package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

func TestAdapterInputCountAndByteSizes(t *testing.T) {
	inputs := []types.Tensor{
		{Name: "a", Shape: types.Shape{2}, Datatype: types.U8, Data: []byte{1, 2}},
		{Name: "b", Shape: types.Shape{3}, Datatype: types.U8, Data: []byte{1, 2, 3}},
	}
	a := New("r1", types.NewParameters(), inputs, nil, nil)

	assert.Equal(t, 2, a.InputCount())
	assert.Equal(t, []int{2, 3}, a.InputByteSizes())
	assert.False(t, a.ArrivedAt.IsZero())
}

func TestAdapterMaterializeWritesIntoBuffersAndAdvancesOffsets(t *testing.T) {
	pool := memory.NewPool()
	buf, err := buffer.Acquire(pool, []memory.Kind{memory.Cpu}, 8)
	require.NoError(t, err)
	defer buf.Release()

	a := New("r1", types.NewParameters(), []types.Tensor{
		{Name: "a", Shape: types.Shape{4}, Datatype: types.U8, Data: []byte{9, 9, 9, 9}},
	}, nil, nil)

	req, offsets, err := a.Materialize([]*buffer.Buffer{buf}, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, offsets)
	assert.Equal(t, "r1", req.ID)
	assert.Equal(t, []byte{9, 9, 9, 9}, req.Inputs[0].Data)
}

func TestAdapterMaterializeFailsWhenInputDoesNotFit(t *testing.T) {
	pool := memory.NewPool()
	buf, err := buffer.Acquire(pool, []memory.Kind{memory.Cpu}, 2)
	require.NoError(t, err)
	defer buf.Release()

	a := New("r1", types.NewParameters(), []types.Tensor{
		{Name: "a", Shape: types.Shape{4}, Datatype: types.U8, Data: []byte{9, 9, 9, 9}},
	}, nil, nil)

	_, _, err = a.Materialize([]*buffer.Buffer{buf}, []int{0})
	assert.Error(t, err)
}

func TestAdapterMaterializeFailsOnBufferCountMismatch(t *testing.T) {
	a := New("r1", types.NewParameters(), []types.Tensor{
		{Name: "a", Shape: types.Shape{4}, Datatype: types.U8, Data: []byte{9, 9, 9, 9}},
	}, nil, nil)

	_, _, err := a.Materialize(nil, nil)
	assert.Error(t, err)
}

func TestAdapterErrorHandlerInvokesCallbackWithError(t *testing.T) {
	var got *types.Response
	a := New("r1", types.NewParameters(), nil, nil, func(r *types.Response) {
		got = r
	})

	a.ErrorHandler(assert.AnError)
	require.NotNil(t, got)
	assert.Equal(t, assert.AnError.Error(), got.Error)
}
