package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/memory"
)

func TestAcquireWriteAndRelease(t *testing.T) {
	pool := memory.NewPool()

	buf, err := Acquire(pool, []memory.Kind{memory.Cpu}, 16)
	require.NoError(t, err)
	assert.Equal(t, memory.Cpu, buf.Kind())
	assert.Equal(t, 16, buf.Len())

	next := buf.Write([]byte{1, 2, 3, 4}, 0)
	assert.Equal(t, 4, next)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Data(0)[:4])

	next = buf.Write([]byte{5, 6}, next)
	assert.Equal(t, 6, next)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf.Data(0)[:6])

	require.NoError(t, buf.Release())
}

func TestAcquireFailsWhenNoCandidateFits(t *testing.T) {
	pool := memory.NewPool()
	_, err := Acquire(pool, nil, 16)
	assert.Error(t, err)
}
