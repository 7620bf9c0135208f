package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/analyzer"
	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/logcollection"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
	"github.com/core-tools/hsu-netstatus/pkg/monitor/analyzerstate"
	"github.com/core-tools/hsu-netstatus/pkg/process"
	"github.com/core-tools/hsu-netstatus/pkg/report"
)

// BannerWidth is the length of the separator line printed under each analyzer banner
const BannerWidth = 40

type Options struct {
	Shell           string
	Timeout         time.Duration // Applies to analyzers that do not set their own
	WaitDelay       time.Duration
	ContinueOnError bool
	Concurrency     int       // Values above 1 run analyzers in a worker pool and imply ContinueOnError
	Console         io.Writer // Banner destination, defaults to stdout
	Stderr          io.Writer // Analyzer stderr, defaults to stderr
}

// Monitor owns an ordered list of analyzers and the directory their logs go to
type Monitor struct {
	logDir    *logcollection.LogDirectory
	analyzers []analyzer.Analyzer
	options   Options
	logger    logging.Logger

	consoleMutex sync.Mutex

	statesMutex sync.RWMutex
	states      []*analyzerstate.StateMachine
}

func New(logDir string, options Options, logger logging.Logger) *Monitor {
	if options.Console == nil {
		options.Console = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}

	return &Monitor{
		logDir:  logcollection.NewLogDirectory(logDir, logger),
		options: options,
		logger:  logger,
	}
}

// AppendAnalyzer adds an analyzer to the end of the run order
func (m *Monitor) AppendAnalyzer(a analyzer.Analyzer) *Monitor {
	m.analyzers = append(m.analyzers, a)
	return m
}

func (m *Monitor) Analyzers() []analyzer.Analyzer {
	out := make([]analyzer.Analyzer, len(m.analyzers))
	copy(out, m.analyzers)
	return out
}

func (m *Monitor) LogDir() string {
	return m.logDir.Path()
}

// Progress returns a snapshot of every analyzer's state in the current or last run, in run order
func (m *Monitor) Progress() []analyzerstate.StateInfo {
	m.statesMutex.RLock()
	defer m.statesMutex.RUnlock()

	infos := make([]analyzerstate.StateInfo, len(m.states))
	for i, sm := range m.states {
		infos[i] = sm.Info()
	}
	return infos
}

func (m *Monitor) resetStates() []*analyzerstate.StateMachine {
	states := make([]*analyzerstate.StateMachine, len(m.analyzers))
	for i, a := range m.analyzers {
		states[i] = analyzerstate.NewStateMachine(a.Name(), m.logger)
	}

	m.statesMutex.Lock()
	m.states = states
	m.statesMutex.Unlock()
	return states
}

// Run ensures the log directory exists and then executes every analyzer.
// The report is returned even when the run fails.
func (m *Monitor) Run(ctx context.Context) (*report.RunReport, error) {
	runReport := report.NewRunReport(m.logDir.Path())
	defer runReport.Finish()

	m.logger.Infof("Monitor run starting, id: %s, analyzers: %d, log dir: %s, concurrency: %d, continue on error: %t",
		runReport.ID, len(m.analyzers), m.logDir.Path(), m.options.Concurrency, m.options.ContinueOnError)

	states := m.resetStates()

	if err := m.logDir.Ensure(); err != nil {
		return runReport, err
	}

	var err error
	if m.options.Concurrency > 1 && len(m.analyzers) > 1 {
		err = m.runConcurrent(ctx, runReport, states)
	} else {
		err = m.runSequential(ctx, runReport, states)
	}

	m.logger.Infof("Monitor run finished, id: %s, succeeded: %d, failed: %d, skipped: %d",
		runReport.ID, runReport.Succeeded(), runReport.Failed(), runReport.Skipped())

	return runReport, err
}

func (m *Monitor) runSequential(ctx context.Context, runReport *report.RunReport, states []*analyzerstate.StateMachine) error {
	errorCollection := errors.NewErrorCollection()

	for i, a := range m.analyzers {
		if ctx.Err() != nil {
			m.skipRemaining(runReport, states, i, "cancelled")
			errorCollection.Add(errors.NewCancelledError("monitor run cancelled", ctx.Err()))
			return errorCollection.ToError()
		}

		result, err := m.start(ctx, a, states[i])
		runReport.Results = append(runReport.Results, result)
		if err == nil {
			continue
		}

		analyzerErr := errors.NewProcessError("analyzer failed", err).
			WithContext("analyzer", a.Name()).
			WithContext("analyzer_index", i)

		if !m.options.ContinueOnError {
			m.skipRemaining(runReport, states, i+1, "aborted")
			return analyzerErr
		}
		errorCollection.Add(analyzerErr)
	}

	return errorCollection.ToError()
}

// runConcurrent isolates analyzers from each other: every failure is captured in its own result
func (m *Monitor) runConcurrent(ctx context.Context, runReport *report.RunReport, states []*analyzerstate.StateMachine) error {
	results := make([]report.AnalyzerResult, len(m.analyzers))
	errs := make([]error, len(m.analyzers))

	workers := m.options.Concurrency
	if workers > len(m.analyzers) {
		workers = len(m.analyzers)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				a := m.analyzers[i]
				if ctx.Err() != nil {
					m.transition(states[i], analyzerstate.StateSkipped, "cancelled", ctx.Err())
					results[i] = skippedResult(a)
					errs[i] = errors.NewCancelledError("monitor run cancelled", ctx.Err()).WithContext("analyzer", a.Name())
					continue
				}
				result, err := m.start(ctx, a, states[i])
				results[i] = result
				if err != nil {
					errs[i] = errors.NewProcessError("analyzer failed", err).
						WithContext("analyzer", a.Name()).
						WithContext("analyzer_index", i)
				}
			}
		}()
	}

	for i := range m.analyzers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	runReport.Results = results

	errorCollection := errors.NewErrorCollection()
	for _, err := range errs {
		errorCollection.Add(err)
	}
	return errorCollection.ToError()
}

// Start prints the analyzer banner, then runs its command with stdout redirected to its log file
func (m *Monitor) Start(ctx context.Context, a analyzer.Analyzer) (report.AnalyzerResult, error) {
	return m.start(ctx, a, analyzerstate.NewStateMachine(a.Name(), m.logger))
}

func (m *Monitor) start(ctx context.Context, a analyzer.Analyzer, state *analyzerstate.StateMachine) (report.AnalyzerResult, error) {
	result := report.AnalyzerResult{
		Name:        a.Name(),
		Description: a.Description(),
		Command:     a.Command(),
		LogFile:     a.LogFile(),
		Status:      report.StatusFailed,
		ExitCode:    -1,
	}

	m.transition(state, analyzerstate.StateStarting, "start", nil)
	m.printBanner(a)

	logFile, err := m.logDir.OpenLogFile(a.LogFile())
	if err != nil {
		m.transition(state, analyzerstate.StateFailed, "open log file", err)
		return failed(result, err), err
	}

	timeout := a.Timeout()
	if timeout == 0 {
		timeout = m.options.Timeout
	}

	m.logger.Infof("Starting analyzer, name: %s, log file: %s", a.Name(), logFile.Path())
	m.transition(state, analyzerstate.StateRunning, "execute", nil)

	execResult, execErr := process.Execute(ctx, process.ExecutionConfig{
		Command:   a.Command(),
		Shell:     m.options.Shell,
		Stdout:    logFile.File(),
		Stderr:    m.options.Stderr,
		Timeout:   timeout,
		WaitDelay: m.options.WaitDelay,
	}, m.logger)

	closeErr := logFile.Close()
	result.LogSize = logFile.Size()
	if execResult != nil {
		result.PID = execResult.PID
		result.ExitCode = execResult.ExitCode
		result.StartedAt = execResult.StartedAt
		result.Duration = execResult.Duration
	}

	if execErr == nil {
		execErr = closeErr
	}
	if execErr != nil {
		m.logger.Errorf("Analyzer failed, name: %s, exit code: %d, error: %v", a.Name(), result.ExitCode, execErr)
		m.transition(state, analyzerstate.StateFailed, "exit", execErr)
		return failed(result, execErr), execErr
	}

	result.Status = report.StatusSucceeded
	m.transition(state, analyzerstate.StateSucceeded, "exit", nil)
	m.logger.Infof("Analyzer finished, name: %s, duration: %s, log bytes: %d", a.Name(), result.Duration, result.LogSize)
	return result, nil
}

func (m *Monitor) printBanner(a analyzer.Analyzer) {
	m.consoleMutex.Lock()
	defer m.consoleMutex.Unlock()

	fmt.Fprintf(m.options.Console, "Testing %s\n%s\n", a.Description(), strings.Repeat("=", BannerWidth))
}

func (m *Monitor) skipRemaining(runReport *report.RunReport, states []*analyzerstate.StateMachine, from int, reason string) {
	for i := from; i < len(m.analyzers); i++ {
		m.transition(states[i], analyzerstate.StateSkipped, reason, nil)
		runReport.Results = append(runReport.Results, skippedResult(m.analyzers[i]))
	}
}

// transition failures mean the monitor itself is out of step; they are logged, never returned
func (m *Monitor) transition(state *analyzerstate.StateMachine, to analyzerstate.State, operation string, cause error) {
	if err := state.Transition(to, operation, cause); err != nil {
		m.logger.Errorf("Analyzer state error: %v", err)
	}
}

func skippedResult(a analyzer.Analyzer) report.AnalyzerResult {
	return report.AnalyzerResult{
		Name:        a.Name(),
		Description: a.Description(),
		Command:     a.Command(),
		LogFile:     a.LogFile(),
		Status:      report.StatusSkipped,
		ExitCode:    -1,
	}
}

func failed(result report.AnalyzerResult, err error) report.AnalyzerResult {
	result.Status = report.StatusFailed
	result.Err = err
	result.Error = err.Error()
	return result
}
