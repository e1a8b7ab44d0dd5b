package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestContextFields_Empty(t *testing.T) {
	fields := ContextFields(context.Background())
	assert.Empty(t, fields)
}

func TestContextFields_SessionAndDevice(t *testing.T) {
	ctx := WithSessionID(context.Background(), "0b6f3a7c-1b7e-4c55-9d7e-0d2f9a3c8e11")
	ctx = WithDevice(ctx, "/dev/input/event7")

	fields := ContextFields(ctx)

	assert.Len(t, fields, 2)
	assertFieldExists(t, fields, "session.id", "0b6f3a7c-1b7e-4c55-9d7e-0d2f9a3c8e11")
	assertFieldExists(t, fields, "device", "/dev/input/event7")
}

func TestWithSessionID_Validation(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		wantPanic bool
	}{
		{"valid uuid", "0b6f3a7c-1b7e-4c55-9d7e-0d2f9a3c8e11", false},
		{"valid underscore", "sess_1", false},
		{"empty", "", true},
		{"spaces", "sess 1", true},
		{"too long", string(make([]byte, 200)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := func() { WithSessionID(context.Background(), tt.sessionID) }
			if tt.wantPanic {
				assert.Panics(t, call)
			} else {
				assert.NotPanics(t, call)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func assertFieldExists(t *testing.T, fields []zap.Field, key, value string) {
	t.Helper()
	for _, f := range fields {
		if f.Key == key {
			assert.Equal(t, value, f.String)
			return
		}
	}
	t.Errorf("field %q not found", key)
}
