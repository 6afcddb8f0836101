package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/notifytrigger/domain/model"
)

type mockLogger struct{}

func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Debug(msg string, args ...any) {}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantBody string
	}{
		{
			name:     "string body",
			input:    `{"type":"FileChangedEvent","body":"{\"fullPath\":\"/in/a.csv\"}"}`,
			wantType: "FileChangedEvent",
			wantBody: `{"fullPath":"/in/a.csv"}`,
		},
		{
			name:     "object body",
			input:    `{"type":"FileChangedEvent","body":{"fullPath":"/in/a.csv"}}`,
			wantType: "FileChangedEvent",
			wantBody: `{"fullPath":"/in/a.csv"}`,
		},
		{
			name:     "capitalized keys",
			input:    `{"Type":"Heartbeat","Body":"ping"}`,
			wantType: "Heartbeat",
			wantBody: "ping",
		},
		{
			name:     "missing body",
			input:    `{"type":"Heartbeat"}`,
			wantType: "Heartbeat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := decodeEnvelope([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, n.Type)
			assert.Equal(t, tt.wantBody, string(n.Body))
		})
	}
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	for _, input := range []string{`not json`, `{"type":`, `[1,2]`} {
		_, err := decodeEnvelope([]byte(input))
		assert.ErrorIs(t, err, model.ErrDecode, input)
	}
}
