package netconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration file structure.
// Files ending in .yaml or .yml are YAML; every other file must be strict JSON.
type Config struct {
	LogDir    string           `json:"logdir" yaml:"logdir"`
	Settings  Settings         `json:"settings,omitempty" yaml:"settings,omitempty"`
	Analyzers []AnalyzerConfig `json:"analyzers" yaml:"analyzers"`
}

// Settings holds run-wide execution options
type Settings struct {
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`                     // Per-analyzer timeout, 0 means none
	ContinueOnError bool          `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"` // Keep running after a failed analyzer
	Concurrency     int           `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`             // Analyzers run at once, 1 is sequential
	Shell           string        `json:"shell,omitempty" yaml:"shell,omitempty"`                         // Empty means the platform shell
	WaitDelay       time.Duration `json:"wait_delay,omitempty" yaml:"wait_delay,omitempty"`               // Grace period for output pipes after kill
	HistoryDB       string        `json:"history_db,omitempty" yaml:"history_db,omitempty"`               // Optional SQLite run ledger
}

// AnalyzerType selects which analyzer variant an entry builds
type AnalyzerType string

const (
	AnalyzerTypeGeneric    AnalyzerType = ""
	AnalyzerTypeSite       AnalyzerType = "SiteAnalyzer"
	AnalyzerTypePacketLoss AnalyzerType = "PacketLossAnalyzer"
	AnalyzerTypeSpeed      AnalyzerType = "SpeedAnalyzer"
	AnalyzerTypeBandwidth  AnalyzerType = "BandwidthAnalyzer"
)

// AnalyzerConfig is a single analyzers[] entry
type AnalyzerConfig struct {
	Name    string        `json:"name" yaml:"name"`
	Type    AnalyzerType  `json:"type,omitempty" yaml:"type,omitempty"`
	Enabled *bool         `json:"enabled,omitempty" yaml:"enabled,omitempty"` // Pointer to distinguish unset from false
	Cmd     string        `json:"cmd,omitempty" yaml:"cmd,omitempty"`
	CmdInfo string        `json:"cmdinfo,omitempty" yaml:"cmdinfo,omitempty"`
	URL     string        `json:"url,omitempty" yaml:"url,omitempty"`
	Server  string        `json:"server,omitempty" yaml:"server,omitempty"`
	Cycles  int           `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

const (
	DefaultConcurrency = 1
	DefaultWaitDelay   = 5 * time.Second
)

var supportedTypes = []AnalyzerType{
	AnalyzerTypeGeneric,
	AnalyzerTypeSite,
	AnalyzerTypePacketLoss,
	AnalyzerTypeSpeed,
	AnalyzerTypeBandwidth,
}

// IsEnabled reports whether the entry should be built; unset means enabled
func (c AnalyzerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Field returns the value of a named configuration field
func (c AnalyzerConfig) Field(name string) string {
	switch name {
	case "name":
		return c.Name
	case "cmd":
		return c.Cmd
	case "cmdinfo":
		return c.CmdInfo
	case "url":
		return c.URL
	case "server":
		return c.Server
	default:
		return ""
	}
}

// RequireFields returns a validation error naming every empty field
func (c AnalyzerConfig) RequireFields(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(c.Field(f)) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.NewValidationError(
		fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
		nil,
	).WithContext("analyzer", c.Name).WithContext("type", typeLabel(c.Type))
}

// RequiredFields lists the fields an analyzer type cannot run without
func RequiredFields(analyzerType AnalyzerType) []string {
	switch analyzerType {
	case AnalyzerTypeGeneric:
		return []string{"name", "cmd", "cmdinfo"}
	case AnalyzerTypeSite, AnalyzerTypePacketLoss, AnalyzerTypeSpeed:
		return []string{"name", "url"}
	case AnalyzerTypeBandwidth:
		return []string{"name", "server"}
	default:
		return nil
	}
}

// LoadConfigFromFile loads configuration from a JSON file, or a YAML file when the extension says so
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	parse := ParseConfig
	if isYAMLFile(filename) {
		parse = ParseYAMLConfig
	}

	config, err := parse(data)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("filename", filename)
		}
		return nil, err
	}
	return config, nil
}

// ParseConfig decodes strict JSON configuration bytes and applies defaults
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse configuration", err).WithContext("format", "json")
	}

	setConfigDefaults(&config)
	return &config, nil
}

// ParseYAMLConfig decodes YAML configuration bytes and applies defaults
func ParseYAMLConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse configuration", err).WithContext("format", "yaml")
	}

	setConfigDefaults(&config)
	return &config, nil
}

func isYAMLFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// jsonDuration reads "30s" style strings, or integer nanoseconds as the YAML decoder does
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
		return nil
	}

	var nanos int64
	if err := json.Unmarshal(data, &nanos); err != nil {
		return fmt.Errorf("invalid duration: %s", data)
	}
	*d = jsonDuration(nanos)
	return nil
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	aux := struct {
		*plain
		Timeout   *jsonDuration `json:"timeout,omitempty"`
		WaitDelay *jsonDuration `json:"wait_delay,omitempty"`
	}{plain: (*plain)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		s.Timeout = time.Duration(*aux.Timeout)
	}
	if aux.WaitDelay != nil {
		s.WaitDelay = time.Duration(*aux.WaitDelay)
	}
	return nil
}

func (c *AnalyzerConfig) UnmarshalJSON(data []byte) error {
	type plain AnalyzerConfig
	aux := struct {
		*plain
		Timeout *jsonDuration `json:"timeout,omitempty"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		c.Timeout = time.Duration(*aux.Timeout)
	}
	return nil
}

// ValidateConfigFile loads and validates a configuration file without running anything
func ValidateConfigFile(filename string) error {
	config, err := LoadConfigFromFile(filename)
	if err != nil {
		return err
	}
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", filename)
	}
	return nil
}

func setConfigDefaults(config *Config) {
	if config.Settings.Concurrency == 0 {
		config.Settings.Concurrency = DefaultConcurrency
	}
	if config.Settings.WaitDelay == 0 {
		config.Settings.WaitDelay = DefaultWaitDelay
	}

	for i := range config.Analyzers {
		analyzer := &config.Analyzers[i]
		if analyzer.Enabled == nil {
			enabled := true
			analyzer.Enabled = &enabled
		}
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if strings.TrimSpace(config.LogDir) == "" {
		return errors.NewValidationError("logdir is required", nil)
	}

	if err := validateSettings(config.Settings); err != nil {
		return errors.NewValidationError("invalid settings", err)
	}

	for i, analyzer := range config.Analyzers {
		if err := ValidateAnalyzerConfig(analyzer); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid analyzer at index %d", i),
				err,
			).WithContext("analyzer", analyzer.Name).WithContext("analyzer_index", i)
		}
	}

	return nil
}

func validateSettings(settings Settings) error {
	if settings.Concurrency < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid concurrency: %d", settings.Concurrency), nil)
	}
	if settings.Timeout < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid timeout: %s", settings.Timeout), nil)
	}
	if settings.WaitDelay < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid wait delay: %s", settings.WaitDelay), nil)
	}
	return nil
}

// ValidateAnalyzerConfig checks the type tag, the required fields and the name of one entry
func ValidateAnalyzerConfig(config AnalyzerConfig) error {
	if err := ValidateAnalyzerType(config.Type); err != nil {
		return err
	}

	if err := config.RequireFields(RequiredFields(config.Type)...); err != nil {
		return err
	}

	if err := ValidateAnalyzerName(config.Name); err != nil {
		return err
	}

	if config.Type == AnalyzerTypeGeneric {
		if _, err := shellquote.Split(config.Cmd); err != nil {
			return errors.NewValidationError("malformed command", err).
				WithContext("analyzer", config.Name).
				WithContext("cmd", config.Cmd)
		}
	}

	if config.Cycles < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid report cycles: %d", config.Cycles), nil)
	}
	if config.Timeout < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid timeout: %s", config.Timeout), nil)
	}

	return nil
}

// ValidateAnalyzerType rejects any tag outside the closed set of analyzer types
func ValidateAnalyzerType(analyzerType AnalyzerType) error {
	for _, t := range supportedTypes {
		if analyzerType == t {
			return nil
		}
	}
	return errors.NewValidationError(
		fmt.Sprintf("unsupported analyzer type: %s", analyzerType),
		nil,
	).WithContext("supported_types", "SiteAnalyzer, PacketLossAnalyzer, SpeedAnalyzer, BandwidthAnalyzer or none")
}

// ValidateAnalyzerName ensures the name can be used as a log file name inside logdir
func ValidateAnalyzerName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errors.NewValidationError(fmt.Sprintf("analyzer name cannot be used as a file name: %q", name), nil)
	}
	return nil
}

func typeLabel(analyzerType AnalyzerType) string {
	if analyzerType == AnalyzerTypeGeneric {
		return "generic"
	}
	return string(analyzerType)
}
