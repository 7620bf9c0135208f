package analyzer

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
	"github.com/core-tools/hsu-netstatus/pkg/netconfig"
)

// LogFileExtension is appended to an analyzer's derived name to form its log file name
const LogFileExtension = ".log"

// Analyzer maps one configuration entry to a shell command and its log destination
type Analyzer interface {
	Name() string
	Description() string
	Command() string
	LogFile() string
	Timeout() time.Duration // 0 means use the run-wide timeout
}

// commandAnalyzer is immutable once built; every variant produces one
type commandAnalyzer struct {
	name        string
	description string
	command     string
	timeout     time.Duration
}

func (a *commandAnalyzer) Name() string           { return a.name }
func (a *commandAnalyzer) Description() string    { return a.description }
func (a *commandAnalyzer) Command() string        { return a.command }
func (a *commandAnalyzer) LogFile() string        { return LogFileName(a.name) }
func (a *commandAnalyzer) Timeout() time.Duration { return a.timeout }

func (a *commandAnalyzer) String() string {
	return fmt.Sprintf("%s (%s)", a.name, a.LogFile())
}

// LogFileName derives the log file name for an analyzer name
func LogFileName(name string) string {
	return name + LogFileExtension
}

// FromConfig builds the analyzers for one entry. A SiteAnalyzer entry yields a speed
// analyzer followed by a packet loss analyzer; every other type yields exactly one.
func FromConfig(config netconfig.AnalyzerConfig) ([]Analyzer, error) {
	switch config.Type {
	case netconfig.AnalyzerTypeGeneric:
		return single(NewGenericAnalyzer(config))

	case netconfig.AnalyzerTypeSite:
		speed, err := NewSpeedAnalyzer(config)
		if err != nil {
			return nil, err
		}
		packetLoss, err := NewPacketLossAnalyzer(config)
		if err != nil {
			return nil, err
		}
		return []Analyzer{speed, packetLoss}, nil

	case netconfig.AnalyzerTypePacketLoss:
		return single(NewPacketLossAnalyzer(config))

	case netconfig.AnalyzerTypeSpeed:
		return single(NewSpeedAnalyzer(config))

	case netconfig.AnalyzerTypeBandwidth:
		return single(NewBandwidthAnalyzer(config))

	default:
		return nil, netconfig.ValidateAnalyzerType(config.Type)
	}
}

// FromConfigs builds analyzers for every enabled entry, preserving configuration order
func FromConfigs(configs []netconfig.AnalyzerConfig, logger logging.Logger) ([]Analyzer, error) {
	var analyzers []Analyzer

	for i, config := range configs {
		if !config.IsEnabled() {
			logger.Infof("Skipping disabled analyzer, name: %s", config.Name)
			continue
		}

		built, err := FromConfig(config)
		if err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("failed to create analyzer at index %d", i),
				err,
			).WithContext("analyzer", config.Name).WithContext("analyzer_index", i)
		}

		for _, a := range built {
			logger.Debugf("Analyzer created, name: %s, log file: %s, command: %s", a.Name(), a.LogFile(), a.Command())
		}
		analyzers = append(analyzers, built...)
	}

	return analyzers, nil
}

func single(a Analyzer, err error) ([]Analyzer, error) {
	if err != nil {
		return nil, err
	}
	return []Analyzer{a}, nil
}
