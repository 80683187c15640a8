package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewNetworkError(ErrCodeUploadTransport, "Upload failed", cause)

	assert.Equal(t, "UPLOAD_TRANSPORT_FAILED: Upload failed (caused by: connection reset)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeNetwork, err.Type)

	plain := NewValidationError(ErrCodeEmptyQueue, "Nothing queued", nil)
	assert.Equal(t, "EMPTY_QUEUE: Nothing queued", plain.Error())
}

func TestCodeAndMessageHelpers(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewStateError(ErrCodeCycleInProgress, "Analysis already running", nil))

	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{"wrapped app error", wrapped, ErrCodeCycleInProgress, "Analysis already running"},
		{"foreign error", fmt.Errorf("boom"), "", "boom"},
		{"nil", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.message, MessageOf(tt.err))
			if tt.code != "" {
				assert.True(t, HasCode(tt.err, tt.code))
			}
		})
	}
	assert.False(t, HasCode(wrapped, ErrCodeQueueFull))
}

func TestLogError_IncludesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelDebug)

	err := NewServerError(ErrCodeAllUploadsFailed, "All uploads failed", nil).WithContext("failed", 3)
	logger.LogError(err, "Submit failed", "session", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Submit failed", line["msg"])
	assert.Equal(t, "server", line["error_type"])
	assert.Equal(t, ErrCodeAllUploadsFailed, line["error_code"])
	assert.Equal(t, float64(3), line["failed"])
	assert.Equal(t, "abc", line["session"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
