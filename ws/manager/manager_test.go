package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Add(&Operation{ConnectionID: "c1", OperationID: "1", CancelFunc: cancel}))
	require.NoError(t, m.Add(&Operation{ConnectionID: "c2", OperationID: "2"}))
	assert.Error(t, m.Add(&Operation{ConnectionID: "c1", OperationID: "1"}))

	assert.Equal(t, 2, m.Count())
	assert.Equal(t, 1, m.Count("c1"))
	assert.True(t, m.Has("1"))

	op := m.Remove("1")
	require.NotNil(t, op)
	assert.Error(t, ctx.Err())
	assert.False(t, m.Has("1"))
	assert.Nil(t, m.Remove("1"))

	m.RemoveAll()
	assert.Equal(t, 0, m.Count())
}
