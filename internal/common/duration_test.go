package common_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// timedSections holds the config sections that carry durations.
type timedSections struct {
	Node        config.NodeConfig        `yaml:"node" json:"node" toml:"node"`
	Maintenance config.MaintenanceConfig `yaml:"maintenance" json:"maintenance" toml:"maintenance"`
	Archive     config.ArchiveConfig     `yaml:"archive" json:"archive" toml:"archive"`
}

func TestDuration_ConfigSections(t *testing.T) {
	tests := []struct {
		name   string
		decode func(data []byte, v any) error
		doc    string
	}{
		{
			name:   "yaml",
			decode: yaml.Unmarshal,
			doc: `
node:
  timeout: 45s
  poll_interval: 500ms
  retry: {initial_backoff: 250ms, max_backoff: 1m30s}
maintenance: {check_interval: 2h}
archive: {open_timeout: 10s}
`,
		},
		{
			name:   "json",
			decode: json.Unmarshal,
			doc: `{
  "node": {"timeout": "45s", "poll_interval": "500ms", "retry": {"initial_backoff": "250ms", "max_backoff": "1m30s"}},
  "maintenance": {"check_interval": "2h"},
  "archive": {"open_timeout": "10s"}
}`,
		},
		{
			name:   "toml",
			decode: toml.Unmarshal,
			doc: `
[node]
timeout = "45s"
poll_interval = "500ms"

[node.retry]
initial_backoff = "250ms"
max_backoff = "1m30s"

[maintenance]
check_interval = "2h"

[archive]
open_timeout = "10s"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s timedSections
			require.NoError(t, tt.decode([]byte(tt.doc), &s))

			require.Equal(t, 45*time.Second, s.Node.Timeout.Duration)
			require.Equal(t, 500*time.Millisecond, s.Node.PollInterval.Duration)
			require.Equal(t, 250*time.Millisecond, s.Node.Retry.InitialBackoff.Duration)
			require.Equal(t, 90*time.Second, s.Node.Retry.MaxBackoff.Duration)
			require.Equal(t, 2*time.Hour, s.Maintenance.CheckInterval.Duration)
			require.Equal(t, 10*time.Second, s.Archive.OpenTimeout.Duration)

			// explicit values survive defaulting, unset ones get filled
			s.Node.ApplyDefaults()
			require.Equal(t, 45*time.Second, s.Node.Timeout.Duration)
			require.Equal(t, 5, s.Node.Retry.MaxAttempts)
			require.NoError(t, s.Node.Retry.Validate())
		})
	}
}

func TestDuration_RejectsBareNumbers(t *testing.T) {
	for _, doc := range []string{
		"node: {timeout: 30}\n",
		"node: {poll_interval: \"\"}\n",
		"maintenance: {check_interval: 5x}\n",
	} {
		var s timedSections
		require.Error(t, yaml.Unmarshal([]byte(doc), &s), doc)
	}

	var s timedSections
	require.Error(t, json.Unmarshal([]byte(`{"archive": {"open_timeout": "soon"}}`), &s))
}

func TestDuration_RetryWindowOrdering(t *testing.T) {
	retry := config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    common.NewDuration(time.Minute),
		MaxBackoff:        common.NewDuration(time.Second),
		BackoffMultiplier: 2,
	}
	require.ErrorContains(t, retry.Validate(), "max_backoff must not be lower than initial_backoff")
}

func TestDuration_WrittenBackAsText(t *testing.T) {
	var node config.NodeConfig
	node.URL = "http://localhost:8732"
	node.ApplyDefaults()

	out, err := yaml.Marshal(&node)
	require.NoError(t, err)
	require.Contains(t, string(out), "timeout: 30s")
	require.Contains(t, string(out), "poll_interval: 5s")

	var back config.NodeConfig
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, node, back)

	js, err := json.Marshal(config.ArchiveConfig{OpenTimeout: common.NewDuration(1500 * time.Millisecond)})
	require.NoError(t, err)
	require.Contains(t, string(js), `"open_timeout":"1.5s"`)
}

func TestDuration_SchemaIsString(t *testing.T) {
	schema := common.Duration{}.JSONSchema()
	require.Equal(t, "string", schema.Type)
	require.Contains(t, schema.Examples, "300ms")

	reflected, err := json.Marshal(new(jsonschema.Reflector).Reflect(&config.Config{}))
	require.NoError(t, err)
	require.Contains(t, string(reflected), `"title":"Duration"`)
}
