package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(tt.in))
		})
	}
}

func writeConfig(t *testing.T, oracleURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zeroxbot.toml")
	body := fmt.Sprintf(`
instruments = ["BTCUSDT"]
log_level = "DEBUG"

[oracle]
url = %q

[snapshot]
path = %q
`, oracleURL, filepath.Join(dir, "estado_bot.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunAskPrintsReply(t *testing.T) {
	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accion":"ESPERAR","respuesta":"mercado lateral"}`))
	}))
	defer oracle.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeConfig(t, oracle.URL), "-ask", "hola"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "mercado lateral\n[ESPERAR]\n")
	assert.Contains(t, stdout.String(), `"level":"DEBUG"`, "upper-case log_level still enables debug")
}

func TestRunFailureStillClosesApplication(t *testing.T) {
	oracle := httptest.NewServer(http.NotFoundHandler())
	oracle.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeConfig(t, oracle.URL), "-ask", "hola"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ask:")
	assert.Contains(t, stdout.String(), "shutting down application")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "loud"`), 0o600))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "invalid configuration")
}
