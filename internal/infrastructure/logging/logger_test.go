package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty_defaults_to_warn", input: "", want: log.WarnLevel},
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "upper_case", input: "INFO", want: log.InfoLevel},
		{name: "padded", input: " error ", want: log.ErrorLevel},
		{name: "unknown", input: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_FiltersByLevelWithoutTimestamps(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.WithField("package", "trid").Info("installing")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "installing")
	assert.Contains(t, out, "package=trid")
	assert.NotContains(t, out, "time=")
}
