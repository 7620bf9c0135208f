package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	sprintflogging "github.com/core-tools/hsu-netstatus/pkg/logging/sprintf"
	"github.com/core-tools/hsu-netstatus/pkg/logging/zaplog"

	"github.com/core-tools/hsu-netstatus/pkg/logging"
	"github.com/core-tools/hsu-netstatus/pkg/netconfig"
	"github.com/core-tools/hsu-netstatus/pkg/processor"

	flags "github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type flagOptions struct {
	Config          string        `long:"config" short:"c" description:"Configuration file path (JSON or YAML), defaults to analyzers.json next to the executable"`
	LogDir          string        `long:"log-dir" description:"Override the configured log directory"`
	Timeout         time.Duration `long:"timeout" description:"Per-analyzer timeout, e.g. 30s (0 keeps the configured value)"`
	ContinueOnError bool          `long:"continue-on-error" description:"Keep running analyzers after one fails"`
	Concurrency     int           `long:"concurrency" description:"Number of analyzers to run at once"`
	Validate        bool          `long:"validate" description:"Validate the configuration file and exit"`
	DryRun          bool          `long:"dry-run" description:"Print the configuration summary and planned commands without running them"`
	LogFormat       string        `long:"log-format" description:"Log backend" choice:"text" choice:"zap" default:"text"`
	Verbose         bool          `long:"verbose" short:"v" description:"Enable debug logging"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

func newLogger(opts flagOptions) (logging.Logger, func(), error) {
	if opts.LogFormat == "zap" {
		level := "info"
		if opts.Verbose {
			level = "debug"
		}
		return zaplog.NewLogger(logPrefix("hsu-netstatus"), level)
	}

	sprintfLogger := sprintflogging.NewStdSprintfLogger()
	funcs := logging.LogFuncs{
		Infof:  sprintfLogger.Infof,
		Warnf:  sprintfLogger.Warnf,
		Errorf: sprintfLogger.Errorf,
	}
	if opts.Verbose {
		funcs.Debugf = sprintfLogger.Debugf
	}
	return logging.NewLogger(logPrefix("hsu-netstatus"), funcs), func() {}, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		return 1
	}

	logger, syncLogger, err := newLogger(opts)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}
	defer syncLogger()

	configFile := opts.Config
	if configFile == "" {
		configFile = processor.DefaultConfigPath()
	}

	logger.Debugf("Platform: OS=%s, Arch=%s, Go=%s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	if opts.Validate {
		if err := netconfig.ValidateConfigFile(configFile); err != nil {
			logger.Errorf("Configuration is invalid: %v", err)
			return 1
		}
		logger.Infof("Configuration is valid: %s", configFile)
		return 0
	}

	p, err := processor.NewProcessor(configFile, processor.Options{
		LogDir:          opts.LogDir,
		Timeout:         opts.Timeout,
		ContinueOnError: opts.ContinueOnError,
		Concurrency:     opts.Concurrency,
	}, logger)
	if err != nil {
		logger.Errorf("Failed to create processor: %v", err)
		return 1
	}

	if opts.DryRun {
		return dryRun(p, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runReport, err := p.Run(ctx)
	if runReport != nil {
		fmt.Print(runReport.Summary())
	}
	if err != nil {
		logger.Errorf("Failed to run: %v", err)
		return 1
	}
	return 0
}

type plannedAnalyzer struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	LogFile     string `yaml:"log_file"`
	Command     string `yaml:"command"`
}

func dryRun(p *processor.Processor, logger logging.Logger) int {
	plan := struct {
		Summary   netconfig.ConfigSummary `yaml:"summary"`
		Analyzers []plannedAnalyzer       `yaml:"planned"`
	}{
		Summary: netconfig.GetConfigSummary(p.Config()),
	}
	for _, a := range p.Monitor().Analyzers() {
		plan.Analyzers = append(plan.Analyzers, plannedAnalyzer{
			Name:        a.Name(),
			Description: a.Description(),
			LogFile:     a.LogFile(),
			Command:     a.Command(),
		})
	}

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(plan); err != nil {
		logger.Errorf("Failed to print plan: %v", err)
		return 1
	}
	if err := encoder.Close(); err != nil {
		logger.Errorf("Failed to print plan: %v", err)
		return 1
	}
	return 0
}
