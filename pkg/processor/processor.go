package processor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/analyzer"
	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/history"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
	"github.com/core-tools/hsu-netstatus/pkg/monitor"
	"github.com/core-tools/hsu-netstatus/pkg/netconfig"
	"github.com/core-tools/hsu-netstatus/pkg/report"
)

// DefaultConfigFileName is looked up next to the executable when no configuration is given
const DefaultConfigFileName = "analyzers.json"

// Options override configuration settings; zero values keep what the file says
type Options struct {
	LogDir          string
	Timeout         time.Duration
	ContinueOnError bool
	Concurrency     int
	Console         io.Writer
	Stderr          io.Writer
}

// Processor turns a configuration file into a populated Monitor
type Processor struct {
	configFile string
	config     *netconfig.Config
	monitor    *monitor.Monitor
	logger     logging.Logger
}

// DefaultConfigPath returns analyzers.json in the executable's directory
func DefaultConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return DefaultConfigFileName
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	return filepath.Join(filepath.Dir(executable), DefaultConfigFileName)
}

func NewProcessor(configFile string, options Options, logger logging.Logger) (*Processor, error) {
	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	config, err := netconfig.LoadConfigFromFile(configFile)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("config_file", configFile)
		}
		return nil, err
	}

	applyOptions(config, options)

	if err := netconfig.ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	analyzers, err := analyzer.FromConfigs(config.Analyzers, logger)
	if err != nil {
		return nil, errors.NewValidationError("failed to create analyzers from configuration", err).WithContext("config_file", configFile)
	}

	warnDuplicateLogFiles(analyzers, logger)

	m := monitor.New(config.LogDir, monitor.Options{
		Shell:           config.Settings.Shell,
		Timeout:         config.Settings.Timeout,
		WaitDelay:       config.Settings.WaitDelay,
		ContinueOnError: config.Settings.ContinueOnError,
		Concurrency:     config.Settings.Concurrency,
		Console:         options.Console,
		Stderr:          options.Stderr,
	}, logger)

	for _, a := range analyzers {
		m.AppendAnalyzer(a)
	}

	logger.Infof("Configuration loaded successfully, log dir: %s, analyzers: %d", config.LogDir, len(analyzers))

	return &Processor{
		configFile: configFile,
		config:     config,
		monitor:    m,
		logger:     logger,
	}, nil
}

func (p *Processor) Config() *netconfig.Config {
	return p.config
}

func (p *Processor) Monitor() *monitor.Monitor {
	return p.monitor
}

// Run executes every analyzer and records the run in history when a history database is configured.
// A history failure is logged and does not change the run outcome.
func (p *Processor) Run(ctx context.Context) (*report.RunReport, error) {
	runReport, runErr := p.monitor.Run(ctx)

	if p.config.Settings.HistoryDB != "" && runReport != nil {
		if err := p.recordHistory(ctx, runReport); err != nil {
			p.logger.Warnf("Failed to record run history, db: %s, error: %v", p.config.Settings.HistoryDB, err)
		}
	}

	return runReport, runErr
}

func (p *Processor) recordHistory(ctx context.Context, runReport *report.RunReport) error {
	// The run context may already be cancelled; the record should still land
	recordCtx := context.WithoutCancel(ctx)

	store, err := history.Open(recordCtx, p.config.Settings.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Record(recordCtx, runReport); err != nil {
		return err
	}
	p.logger.Debugf("Run recorded in history, id: %s, db: %s", runReport.ID, store.Path())
	return nil
}

func applyOptions(config *netconfig.Config, options Options) {
	if options.LogDir != "" {
		config.LogDir = options.LogDir
	}
	if options.Timeout > 0 {
		config.Settings.Timeout = options.Timeout
	}
	if options.ContinueOnError {
		config.Settings.ContinueOnError = true
	}
	if options.Concurrency > 0 {
		config.Settings.Concurrency = options.Concurrency
	}
}

// Two analyzers sharing a log file are allowed; the later one overwrites the earlier output
func warnDuplicateLogFiles(analyzers []analyzer.Analyzer, logger logging.Logger) {
	seen := make(map[string]string, len(analyzers))
	for _, a := range analyzers {
		if previous, ok := seen[a.LogFile()]; ok {
			logger.Warnf("Duplicate log file, file: %s, analyzers: %s and %s, later output overwrites earlier", a.LogFile(), previous, a.Name())
			continue
		}
		seen[a.LogFile()] = a.Name()
	}
}
