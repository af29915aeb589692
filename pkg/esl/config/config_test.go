package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/esl/pkg/esl/config"
)

// TestNew verifies Config creation from maps.
func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"password": "ClueCon"}, "password", "default", "ClueCon"},
		{"key missing", map[string]any{"other": "value"}, "password", "default", "default"},
		{"empty string", map[string]any{"password": ""}, "password", "default", ""},
		{"wrong type int", map[string]any{"password": 123}, "password", "default", "default"},
		{"wrong type bool", map[string]any{"password": true}, "password", "default", "default"},
		{"nil map", nil, "password", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestBool verifies boolean extraction with defaults.
func TestBool(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal bool
		want       bool
	}{
		{"true value", map[string]any{"linger": true}, "linger", false, true},
		{"false value", map[string]any{"linger": false}, "linger", true, false},
		{"key missing default false", map[string]any{"other": true}, "linger", false, false},
		{"key missing default true", map[string]any{"other": false}, "linger", true, true},
		{"wrong type string", map[string]any{"linger": "true"}, "linger", false, false},
		{"wrong type int", map[string]any{"linger": 1}, "linger", false, false},
		{"nil map", nil, "linger", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Bool(tt.key, tt.defaultVal))
		})
	}
}

// TestInt verifies integer extraction with type coercion.
func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int value", map[string]any{"port": 8021}, "port", 0, 8021},
		{"int64 value", map[string]any{"port": int64(8021)}, "port", 0, 8021},
		{"float64 whole", map[string]any{"port": 8021.0}, "port", 0, 8021},
		{"float64 fractional", map[string]any{"port": 80.5}, "port", 99, 99},
		{"key missing", map[string]any{"other": 1}, "port", 99, 99},
		{"wrong type string", map[string]any{"port": "8021"}, "port", 99, 99},
		{"zero", map[string]any{"port": 0}, "port", 99, 0},
		{"nil map", nil, "port", 99, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int(tt.key, tt.defaultVal))
		})
	}
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"string duration", map[string]any{"timeout": "30s"}, "timeout", 10 * time.Second, 30 * time.Second},
		{"complex string", map[string]any{"timeout": "1m30s"}, "timeout", 10 * time.Second, 90 * time.Second},
		{"int seconds", map[string]any{"timeout": 60}, "timeout", 10 * time.Second, 60 * time.Second},
		{"int64 seconds", map[string]any{"timeout": int64(45)}, "timeout", 10 * time.Second, 45 * time.Second},
		{"float64 seconds", map[string]any{"timeout": 0.5}, "timeout", 10 * time.Second, 500 * time.Millisecond},
		{"time.Duration directly", map[string]any{"timeout": 5 * time.Minute}, "timeout", 10 * time.Second, 5 * time.Minute},
		{"invalid string", map[string]any{"timeout": "soon"}, "timeout", 10 * time.Second, 10 * time.Second},
		{"key missing", nil, "timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

// TestStringSlice verifies string slice extraction.
func TestStringSlice(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal []string
		want       []string
	}{
		{
			"[]string value",
			map[string]any{"events": []string{"CHANNEL_CREATE", "CHANNEL_HANGUP"}},
			"events", []string{"ALL"},
			[]string{"CHANNEL_CREATE", "CHANNEL_HANGUP"},
		},
		{
			"[]any with strings",
			map[string]any{"events": []any{"HEARTBEAT", "BACKGROUND_JOB"}},
			"events", []string{"ALL"},
			[]string{"HEARTBEAT", "BACKGROUND_JOB"},
		},
		{
			"[]any with mixed types",
			map[string]any{"events": []any{"HEARTBEAT", 9}},
			"events", []string{"ALL"},
			[]string{"ALL"},
		},
		{"key missing", nil, "events", []string{"ALL"}, []string{"ALL"}},
		{"wrong type string", map[string]any{"events": "ALL"}, "events", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.StringSlice(tt.key, tt.defaultVal))
		})
	}
}

// TestSection verifies nested section extraction.
func TestSection(t *testing.T) {
	cfg := config.New(map[string]any{
		"switch": map[string]any{
			"host": "127.0.0.1",
			"port": 8021,
		},
		"flat": "value",
	})

	sw := cfg.Section("switch")
	assert.Equal(t, "127.0.0.1", sw.String("host", ""))
	assert.Equal(t, 8021, sw.Int("port", 0))

	// Non-mapping and missing keys yield empty sections.
	assert.False(t, cfg.Section("flat").Has("anything"))
	assert.False(t, cfg.Section("missing").Has("anything"))
}

// TestHas verifies key existence checks.
func TestHas(t *testing.T) {
	cfg := config.New(map[string]any{"host": "localhost", "empty": nil})
	assert.True(t, cfg.Has("host"))
	assert.True(t, cfg.Has("empty"))
	assert.False(t, cfg.Has("missing"))
}

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
host: 127.0.0.1
port: 8021
linger: true
events:
  - CHANNEL_CREATE
  - CHANNEL_HANGUP
switch:
  password: ClueCon
`))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.String("host", ""))
	assert.Equal(t, 8021, cfg.Int("port", 0))
	assert.True(t, cfg.Bool("linger", false))
	assert.Equal(t, []string{"CHANNEL_CREATE", "CHANNEL_HANGUP"}, cfg.StringSlice("events", nil))
	assert.Equal(t, "ClueCon", cfg.Section("switch").String("password", ""))

	_, err = config.FromYAML([]byte("invalid: yaml: content:"))
	assert.Error(t, err)
}

// TestFromJSON verifies JSON parsing, including its float64 numbers.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"host": "127.0.0.1", "port": 8021, "linger": false}`))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.String("host", ""))
	assert.Equal(t, 8021, cfg.Int("port", 0))
	assert.False(t, cfg.Bool("linger", true))

	_, err = config.FromJSON([]byte("{not json}"))
	assert.Error(t, err)
}

// TestFromFile verifies file loading with extension detection.
func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "esl.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("host: fromyaml"), 0o644))

	jsonPath := filepath.Join(tmpDir, "esl.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"host": "fromjson"}`), 0o644))

	txtPath := filepath.Join(tmpDir, "esl.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("host"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr string
		want    string
	}{
		{"yaml file", yamlPath, "", "fromyaml"},
		{"json file", jsonPath, "", "fromjson"},
		{"unsupported extension", txtPath, "unsupported config file extension", ""},
		{"file not found", filepath.Join(tmpDir, "missing.yaml"), "read config file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromFile(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.String("host", ""))
		})
	}
}
