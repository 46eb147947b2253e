package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError_Wrapping(t *testing.T) {
	base := New("socket closed by peer")
	err := WrapTransient(base, "Bot", "receiveLoop", "read frame")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bot.receiveLoop")
	assert.Contains(t, err.Error(), "read frame failed")
	assert.True(t, Is(err, base))

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "Bot", ce.Component)
	assert.Equal(t, "receiveLoop", ce.Operation)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassify_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"handshake rejection is fatal", ErrHandshakeFailed, ErrorFatal},
		{"connection loss is transient", ErrConnectionLost, ErrorTransient},
		{"heartbeat timeout is transient", ErrHeartbeatTimeout, ErrorTransient},
		{"rule timeout is transient", ErrRuleTimeout, ErrorTransient},
		{"queue full is transient", ErrQueueFull, ErrorTransient},
		{"missing token is invalid", ErrMissingToken, ErrorInvalid},
		{"duplicate rule is invalid", ErrDuplicateRule, ErrorInvalid},
		{"unknown errors default to transient", New("something odd"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_WrappedSentinels(t *testing.T) {
	err := fmt.Errorf("reconnect: %w", ErrHandshakeFailed)
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrorFatal, Classify(err))
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}
