package netconfig

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	LogDir           string            `json:"log_dir" yaml:"log_dir"`
	Timeout          string            `json:"timeout" yaml:"timeout"`
	ContinueOnError  bool              `json:"continue_on_error" yaml:"continue_on_error"`
	Concurrency      int               `json:"concurrency" yaml:"concurrency"`
	HistoryDB        string            `json:"history_db,omitempty" yaml:"history_db,omitempty"`
	TotalAnalyzers   int               `json:"total_analyzers" yaml:"total_analyzers"`
	EnabledAnalyzers int               `json:"enabled_analyzers" yaml:"enabled_analyzers"`
	Analyzers        []AnalyzerSummary `json:"analyzers" yaml:"analyzers"`
	Error            string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// AnalyzerSummary provides a summary of one analyzers[] entry
type AnalyzerSummary struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Target  string `json:"target,omitempty" yaml:"target,omitempty"`
}

// GetConfigSummary returns a human-readable summary of the configuration
func GetConfigSummary(config *Config) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	timeout := "none"
	if config.Settings.Timeout > 0 {
		timeout = config.Settings.Timeout.String()
	}

	summary := ConfigSummary{
		LogDir:          config.LogDir,
		Timeout:         timeout,
		ContinueOnError: config.Settings.ContinueOnError,
		Concurrency:     config.Settings.Concurrency,
		HistoryDB:       config.Settings.HistoryDB,
		Analyzers:       make([]AnalyzerSummary, 0, len(config.Analyzers)),
	}

	for _, analyzer := range config.Analyzers {
		analyzerSummary := AnalyzerSummary{
			Name:    analyzer.Name,
			Type:    typeLabel(analyzer.Type),
			Enabled: analyzer.IsEnabled(),
		}

		switch analyzer.Type {
		case AnalyzerTypeGeneric:
			analyzerSummary.Target = analyzer.Cmd
		case AnalyzerTypeSite, AnalyzerTypePacketLoss, AnalyzerTypeSpeed:
			analyzerSummary.Target = analyzer.URL
		case AnalyzerTypeBandwidth:
			analyzerSummary.Target = analyzer.Server
		}

		summary.Analyzers = append(summary.Analyzers, analyzerSummary)
		if analyzerSummary.Enabled {
			summary.EnabledAnalyzers++
		}
	}
	summary.TotalAnalyzers = len(summary.Analyzers)

	return summary
}
