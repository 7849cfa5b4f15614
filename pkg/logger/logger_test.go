package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func capture(opts Options) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts.Output = buf
	if opts.ServiceName == "" {
		opts.ServiceName = "ministeam-test"
	}
	return New(opts), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	log, buf := capture(Options{Level: zerolog.DebugLevel})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithUserID(ctx, "user-1")
	log.Error(ctx, "checkout failed", errors.New("cart is empty"))

	entry := lastEntry(t, buf)
	require.Equal(t, "req-123", entry["request_id"])
	require.Equal(t, "user-1", entry["user_id"])
	require.Equal(t, "ministeam-test", entry["service"])
	require.Equal(t, "cart is empty", entry["error"])
	require.Equal(t, "error", entry["level"])

	stack, ok := entry["stack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, stack)
	require.Contains(t, stack[0], "TestErrorCarriesContextFieldsAndStack")
}

func TestDerivedContextsDoNotLeak(t *testing.T) {
	log, buf := capture(Options{})

	parent := log.WithField(context.Background(), "game_id", "g-1")
	_ = log.WithFields(parent, map[string]any{"score": 9})
	log.Info(parent, "review listed")

	entry := lastEntry(t, buf)
	require.Equal(t, "g-1", entry["game_id"])
	require.NotContains(t, entry, "score")
}

func TestWarnStackToggle(t *testing.T) {
	loud, buf := capture(Options{WarnStack: true})
	loud.Warn(context.Background(), "slow query")
	require.Contains(t, lastEntry(t, buf), "stack")

	quiet, buf := capture(Options{})
	quiet.Warn(context.Background(), "slow query")
	require.NotContains(t, lastEntry(t, buf), "stack")
}

func TestLevelFiltering(t *testing.T) {
	log, buf := capture(Options{Level: zerolog.InfoLevel})
	log.Debug(log.WithGameID(context.Background(), "g-1"), "cart refreshed")
	require.Zero(t, buf.Len())

	log.Info(context.TODO(), "started")
	require.Equal(t, "started", lastEntry(t, buf)["message"])
}

func TestConsoleOutput(t *testing.T) {
	log, buf := capture(Options{Console: true})
	log.Info(context.Background(), "listening")
	require.Contains(t, buf.String(), "listening")
	require.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	require.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
