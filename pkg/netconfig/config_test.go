package netconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		content     string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "json config with all analyzer kinds",
			file: "analyzers.json",
			content: `{
  "logdir": "./logs",
  "analyzers": [
    {"name": "dns", "cmd": "nmcli device show wlan0", "cmdinfo": "Current DNS and Gateway"},
    {"name": "Bing", "type": "SiteAnalyzer", "url": "www.bing.com"},
    {"name": "Local", "type": "BandwidthAnalyzer", "server": "6591", "enabled": false}
  ]
}`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "./logs", config.LogDir)
				require.Len(t, config.Analyzers, 3)

				assert.Equal(t, AnalyzerTypeGeneric, config.Analyzers[0].Type)
				assert.Equal(t, "nmcli device show wlan0", config.Analyzers[0].Cmd)
				assert.True(t, config.Analyzers[0].IsEnabled())

				assert.Equal(t, AnalyzerTypeSite, config.Analyzers[1].Type)
				assert.Equal(t, "www.bing.com", config.Analyzers[1].URL)

				assert.Equal(t, "6591", config.Analyzers[2].Server)
				assert.False(t, config.Analyzers[2].IsEnabled())

				assert.Empty(t, config.Settings.Shell)
				assert.Equal(t, DefaultConcurrency, config.Settings.Concurrency)
				assert.Equal(t, DefaultWaitDelay, config.Settings.WaitDelay)
				assert.Zero(t, config.Settings.Timeout)
			},
		},
		{
			name: "yaml config with settings",
			file: "analyzers.yaml",
			content: `
logdir: /var/log/netstatus
settings:
  timeout: 45s
  continue_on_error: true
  concurrency: 3
  shell: /bin/bash
analyzers:
  - name: Google
    type: PacketLossAnalyzer
    url: www.google.com
    cycles: 20
    timeout: 2m
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, 45*time.Second, config.Settings.Timeout)
				assert.True(t, config.Settings.ContinueOnError)
				assert.Equal(t, 3, config.Settings.Concurrency)
				assert.Equal(t, "/bin/bash", config.Settings.Shell)
				require.Len(t, config.Analyzers, 1)
				assert.Equal(t, 20, config.Analyzers[0].Cycles)
				assert.Equal(t, 2*time.Minute, config.Analyzers[0].Timeout)
			},
		},
		{
			name: "json durations and duplicate keys",
			file: "analyzers.json",
			content: `{
  "logdir": "./first",
  "logdir": "./second",
  "settings": {"timeout": "1m30s", "wait_delay": 2000000000},
  "analyzers": [
    {"name": "Google", "type": "PacketLossAnalyzer", "url": "www.google.com", "timeout": "2m"}
  ]
}`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "./second", config.LogDir)
				assert.Equal(t, 90*time.Second, config.Settings.Timeout)
				assert.Equal(t, 2*time.Second, config.Settings.WaitDelay)
				require.Len(t, config.Analyzers, 1)
				assert.Equal(t, 2*time.Minute, config.Analyzers[0].Timeout)
				assert.True(t, config.Analyzers[0].IsEnabled())
			},
		},
		{
			name:        "malformed json",
			file:        "broken.json",
			content:     `{"logdir": "./logs", "analyzers": [`,
			expectError: true,
		},
		{
			name:        "json with trailing comma",
			file:        "analyzers.json",
			content:     `{"logdir": "a", "analyzers": [{"name": "n", "cmd": "x", "cmdinfo": "y"},]}`,
			expectError: true,
		},
		{
			name:        "yaml body in a json file",
			file:        "analyzers.json",
			content:     "logdir: ./logs\nanalyzers: []\n",
			expectError: true,
		},
		{
			name:        "json duration that does not parse",
			file:        "analyzers.json",
			content:     `{"logdir": "a", "settings": {"timeout": "soon"}, "analyzers": []}`,
			expectError: true,
		},
		{
			name:        "duplicate keys in yaml",
			file:        "analyzers.yml",
			content:     "logdir: a\nlogdir: b\nanalyzers: []\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			config, err := LoadConfigFromFile(path)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogDir: "logs",
			Settings: Settings{
				Concurrency: 1,
			},
			Analyzers: []AnalyzerConfig{
				{Name: "dns", Cmd: "nmcli device show wlan0", CmdInfo: "Current DNS"},
				{Name: "Bing", Type: AnalyzerTypeSite, URL: "www.bing.com"},
				{Name: "Local", Type: AnalyzerTypeBandwidth, Server: "6591"},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "nil-safe empty analyzers", mutate: func(c *Config) { c.Analyzers = nil }},
		{name: "missing logdir", mutate: func(c *Config) { c.LogDir = " " }, expectErr: "logdir is required"},
		{name: "unknown type tag", mutate: func(c *Config) { c.Analyzers[1].Type = "os.system('rm -rf /')" }, expectErr: "unsupported analyzer type"},
		{name: "generic missing cmd", mutate: func(c *Config) { c.Analyzers[0].Cmd = "" }, expectErr: "missing required field(s): cmd"},
		{name: "site missing url", mutate: func(c *Config) { c.Analyzers[1].URL = "" }, expectErr: "missing required field(s): url"},
		{name: "bandwidth missing server", mutate: func(c *Config) { c.Analyzers[2].Server = "" }, expectErr: "missing required field(s): server"},
		{name: "unbalanced quotes", mutate: func(c *Config) { c.Analyzers[0].Cmd = `echo "oops` }, expectErr: "malformed command"},
		{name: "name with separator", mutate: func(c *Config) { c.Analyzers[0].Name = "../escape" }, expectErr: "cannot be used as a file name"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Settings.Concurrency = -1 }, expectErr: "invalid concurrency"},
		{name: "negative cycles", mutate: func(c *Config) { c.Analyzers[1].Cycles = -5 }, expectErr: "invalid report cycles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := ValidateConfig(config)
			if tt.expectErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}

	assert.Error(t, ValidateConfig(nil))
}

func TestValidateConfigFile(t *testing.T) {
	good := writeConfig(t, "good.json", `{"logdir": "logs", "analyzers": [{"name": "Bing", "type": "SpeedAnalyzer", "url": "www.bing.com"}]}`)
	bad := writeConfig(t, "bad.json", `{"logdir": "logs", "analyzers": [{"name": "Bing", "type": "Evil"}]}`)

	assert.NoError(t, ValidateConfigFile(good))

	err := ValidateConfigFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported analyzer type: Evil")
}

func TestParseConfig_StrictJSON(t *testing.T) {
	_, err := ParseConfig([]byte(`{"logdir": "a", "analyzers": [{"name": "n", "cmd": "x", "cmdinfo": "y"},]}`))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	format, ok := errors.ContextValue(err, "format")
	require.True(t, ok)
	assert.Equal(t, "json", format)

	config, err := ParseYAMLConfig([]byte("logdir: a\nanalyzers: []\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", config.LogDir)
}

func TestValidateAnalyzerConfig_MalformedCommandNamesEntry(t *testing.T) {
	err := ValidateAnalyzerConfig(AnalyzerConfig{Name: "dhcp", Cmd: `echo "oops`, CmdInfo: "DHCP lease"})

	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Contains(t, err.Error(), "analyzer=dhcp")
	assert.Contains(t, err.Error(), `cmd=echo "oops`)
}

func TestRequireFields(t *testing.T) {
	config := AnalyzerConfig{Name: "x"}

	assert.NoError(t, config.RequireFields("name"))

	err := config.RequireFields("name", "url", "server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url, server")
}

func TestGetConfigSummary(t *testing.T) {
	disabled := false
	config := &Config{
		LogDir:   "logs",
		Settings: Settings{Timeout: 30 * time.Second, Concurrency: 2},
		Analyzers: []AnalyzerConfig{
			{Name: "dns", Cmd: "nmcli device show wlan0", CmdInfo: "DNS"},
			{Name: "Bing", Type: AnalyzerTypeSite, URL: "www.bing.com"},
			{Name: "Local", Type: AnalyzerTypeBandwidth, Server: "6591", Enabled: &disabled},
		},
	}

	summary := GetConfigSummary(config)

	assert.Equal(t, "logs", summary.LogDir)
	assert.Equal(t, "30s", summary.Timeout)
	assert.Equal(t, 2, summary.Concurrency)
	assert.Equal(t, 3, summary.TotalAnalyzers)
	assert.Equal(t, 2, summary.EnabledAnalyzers)
	require.Len(t, summary.Analyzers, 3)
	assert.Equal(t, "generic", summary.Analyzers[0].Type)
	assert.Equal(t, "nmcli device show wlan0", summary.Analyzers[0].Target)
	assert.Equal(t, "www.bing.com", summary.Analyzers[1].Target)
	assert.Equal(t, "6591", summary.Analyzers[2].Target)
	assert.False(t, summary.Analyzers[2].Enabled)

	assert.Equal(t, "none", GetConfigSummary(&Config{LogDir: "x"}).Timeout)
	assert.NotEmpty(t, GetConfigSummary(nil).Error)
}
