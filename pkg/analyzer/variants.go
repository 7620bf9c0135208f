package analyzer

import (
	"strconv"
	"strings"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/netconfig"

	"github.com/kballard/go-shellquote"
)

const (
	// DefaultReportCycles is the number of mtr pings per hop
	DefaultReportCycles = 10

	// SpeedMaxTimeSeconds bounds a single curl transfer
	SpeedMaxTimeSeconds = 10

	// SpeedWriteOut is the curl --write-out template; curl expands the \n escapes itself
	SpeedWriteOut = `remote: %{remote_ip}:%{remote_port}\n` +
		`size_download: %{size_download} B\n` +
		`speed_download: %{speed_download} B/s\n` +
		`time_total: %{time_total}s\n` +
		`time_namelookup: %{time_namelookup}s\n` +
		`time_pretransfer: %{time_pretransfer}s\n` +
		`time_redirect: %{time_redirect}s\n` +
		`time_start_transfer_first_byte: %{time_starttransfer}s\n`

	// BandwidthTool runs the bandwidth measurement
	BandwidthTool = "speedtest.py"

	// BandwidthFilter keeps only the hosted-server and download/upload lines
	BandwidthFilter = "Hosted|load:"

	packetLossPrefix = "PacketLossTo"
	speedPrefix      = "SpeedTo"
	bandwidthSuffix  = "Bandwidth"
)

// NewGenericAnalyzer runs the configured command verbatim
func NewGenericAnalyzer(config netconfig.AnalyzerConfig) (Analyzer, error) {
	if err := requireFields(config, "name", "cmd", "cmdinfo"); err != nil {
		return nil, err
	}

	return &commandAnalyzer{
		name:        config.Name,
		description: config.CmdInfo,
		command:     config.Cmd,
		timeout:     config.Timeout,
	}, nil
}

// NewPacketLossAnalyzer traces packet loss to the configured URL with mtr
func NewPacketLossAnalyzer(config netconfig.AnalyzerConfig) (Analyzer, error) {
	if err := requireFields(config, "name", "url"); err != nil {
		return nil, err
	}

	cycles := config.Cycles
	if cycles <= 0 {
		cycles = DefaultReportCycles
	}

	command := strings.Join([]string{
		"mtr", "--report", "--report-cycles", strconv.Itoa(cycles), shellquote.Join(config.URL),
	}, " ")

	return &commandAnalyzer{
		name:        packetLossPrefix + config.Name,
		description: "Packet loss to " + config.Name,
		command:     command,
		timeout:     config.Timeout,
	}, nil
}

// NewSpeedAnalyzer times a transfer from the configured URL with curl, discarding the body
func NewSpeedAnalyzer(config netconfig.AnalyzerConfig) (Analyzer, error) {
	if err := requireFields(config, "name", "url"); err != nil {
		return nil, err
	}

	command := strings.Join([]string{
		"curl", "-s",
		"-m", strconv.Itoa(SpeedMaxTimeSeconds),
		"-w", shellquote.Join(SpeedWriteOut),
		shellquote.Join(config.URL),
		"-o", "/dev/null",
	}, " ")

	return &commandAnalyzer{
		name:        speedPrefix + config.Name,
		description: "Network speed to " + config.Name,
		command:     command,
		timeout:     config.Timeout,
	}, nil
}

// NewBandwidthAnalyzer measures download and upload bandwidth against a speedtest server
func NewBandwidthAnalyzer(config netconfig.AnalyzerConfig) (Analyzer, error) {
	if err := requireFields(config, "name", "server"); err != nil {
		return nil, err
	}

	command := strings.Join([]string{
		BandwidthTool, "--server", shellquote.Join(config.Server),
		"|", "grep", "-E", shellquote.Join(BandwidthFilter),
	}, " ")

	return &commandAnalyzer{
		name:        config.Name + bandwidthSuffix,
		description: config.Name + " download and upload bandwidth",
		command:     command,
		timeout:     config.Timeout,
	}, nil
}

func requireFields(config netconfig.AnalyzerConfig, fields ...string) error {
	if err := config.RequireFields(fields...); err != nil {
		return err
	}
	if err := netconfig.ValidateAnalyzerName(config.Name); err != nil {
		return errors.NewValidationError("invalid analyzer name", err).WithContext("analyzer", config.Name)
	}
	return nil
}
