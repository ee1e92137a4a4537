package util_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx, id := util.WithOperation(base.WithContext(context.Background()), map[string]string{"group_id": "abc"})
	require.NotEmpty(t, id)

	util.LogFromContext(ctx).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, id, line["operation_id"])
	assert.Equal(t, "abc", line["group_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestLogFromContextFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, util.LogFromContext(context.Background()))
}
