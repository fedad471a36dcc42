package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRunID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))

	runID := NewRunID()
	_, err := uuid.Parse(runID)
	require.NoError(t, err)

	ctx = WithRunID(ctx, runID)
	assert.Equal(t, runID, GetRunID(ctx))
	assert.NotEqual(t, runID, NewRunID())
}
