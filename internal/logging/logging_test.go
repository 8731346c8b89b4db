package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNopDiscards(t *testing.T) {
	l := Nop()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.Error("ignored")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	real := slog.Default()
	assert.Same(t, real, OrNop(real))
}

func TestComponentAddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	Component(l, "cache").Info("hello")
	assert.Contains(t, buf.String(), "component=cache")
}
