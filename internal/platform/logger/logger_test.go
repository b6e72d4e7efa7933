package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supermodelai/supermodel-api/internal/config"
)

func TestSetup(t *testing.T) {
	// Not parallel: Setup mutates the process default logger.
	logger := Setup(config.ServerConfig{Port: 8080, LogLevel: "debug"})
	assert.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = Setup(config.ServerConfig{Port: 8080, LogLevel: "error"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

	// Invalid level falls back to info
	logger = Setup(config.ServerConfig{Port: 8080, LogLevel: "verbose"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), custom)

	assert.Same(t, custom, FromContext(ctx))

	// Falls back to the default logger when the context carries none
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(nil)) //nolint:staticcheck // explicit nil-context fallback
}
