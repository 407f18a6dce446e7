package relay

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/health"
	"github.com/c360/magicportal/metric"
)

// Task is one per-group relay loop.
type Task interface {
	Group() Group
	Mode() string
	// Run blocks until ctx is cancelled, the task completes or it fails.
	// Cancellation is not an error.
	Run(ctx context.Context) error
}

// readiness is implemented by tasks that signal the end of their setup.
type readiness interface {
	Ready() <-chan struct{}
}

// Outcome is how a task ended.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeCompleted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the tagged exit state of one task. Err is set only for
// OutcomeFailed.
type Result struct {
	Group   Group
	Mode    string
	Outcome Outcome
	Err     error
}

// Report collects task results in the order the tasks were given.
type Report struct {
	Results []Result
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err combines the errors of every failed task, or nil.
func (r *Report) Err() error {
	var errs error
	for _, res := range r.Failed() {
		errs = multierr.Append(errs, res.Err)
	}
	return errs
}

// FailurePolicy decides what a task failure does to its siblings.
type FailurePolicy int

const (
	// ContinueOnFailure logs the failure and leaves the other tasks running.
	ContinueOnFailure FailurePolicy = iota
	// AbortOnFailure cancels every other task and makes Run return the failure.
	AbortOnFailure
)

func (p FailurePolicy) String() string {
	if p == AbortOnFailure {
		return config.FailurePolicyAbort
	}
	return config.FailurePolicyContinue
}

// ParseFailurePolicy maps the configuration value to a policy. The empty
// string selects ContinueOnFailure.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.FailurePolicyContinue:
		return ContinueOnFailure, nil
	case config.FailurePolicyAbort:
		return AbortOnFailure, nil
	default:
		return ContinueOnFailure, errors.WrapKind(errors.ErrConfiguration, nil,
			"Supervisor", "ParseFailurePolicy", fmt.Sprintf("unknown failure policy %q", s))
	}
}

// SupervisorDeps holds runtime dependencies for a Supervisor
type SupervisorDeps struct {
	Policy          FailurePolicy
	Monitor         *health.Monitor         // optional
	MetricsRegistry *metric.MetricsRegistry // optional
	Logger          *slog.Logger
}

// Supervisor runs one goroutine per task under a shared context.
type Supervisor struct {
	policy  FailurePolicy
	monitor *health.Monitor
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(deps SupervisorDeps) *Supervisor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "supervisor")
	}
	return &Supervisor{
		policy:  deps.Policy,
		monitor: deps.Monitor,
		metrics: deps.MetricsRegistry.CoreMetrics(),
		logger:  logger,
	}
}

// Run starts every task and returns after all of them have returned.
// Cancelling ctx stops every task. Under ContinueOnFailure the returned
// error is nil even if tasks failed; the report carries the failures. A
// panicking task always cancels its siblings and makes Run fail with
// errors.ErrTaskPanicked.
func (s *Supervisor) Run(ctx context.Context, tasks []Task) (*Report, error) {
	report := &Report{Results: make([]Result, len(tasks))}
	if len(tasks) == 0 {
		s.logger.Warn("No multicast groups configured, nothing to relay")
		return report, nil
	}

	s.logger.Info("Starting relay tasks", "count", len(tasks), "failure_policy", s.policy.String())

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			res := s.runTask(gctx, task)
			report.Results[i] = res

			if res.Outcome != OutcomeFailed {
				return nil
			}
			if s.policy == AbortOnFailure || errors.Is(res.Err, errors.ErrTaskPanicked) {
				return res.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, errors.Wrap(err, "Supervisor", "Run", "relay task")
	}
	return report, nil
}

func (s *Supervisor) runTask(ctx context.Context, task Task) (res Result) {
	group := task.Group()
	mode := task.Mode()
	name := healthName(mode, group)
	logger := s.logger.With("mode", mode, "group", group.Address)

	res = Result{Group: group, Mode: mode}

	s.monitor.UpdateDegraded(name, "starting")
	if s.metrics != nil {
		s.metrics.TaskStarted(mode)
	}

	done := make(chan struct{})
	var watcher sync.WaitGroup
	if r, ok := task.(readiness); ok {
		watcher.Add(1)
		go func() {
			defer watcher.Done()
			select {
			case <-r.Ready():
				s.monitor.UpdateHealthy(name, "relaying")
				if s.metrics != nil {
					s.metrics.RecordHealthStatus(name, true)
				}
			case <-done:
			}
		}()
	}

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Err = errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrTaskPanicked, p),
				"Supervisor", "Run", "run relay task "+group.Address)
			logger.Error("Relay task panicked", "panic", p, "stack", string(debug.Stack()))
		}
		close(done)
		watcher.Wait()
		s.finish(logger, name, res)
	}()

	err := task.Run(ctx)
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
	case ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
	default:
		res.Outcome = OutcomeCompleted
	}
	return res
}

func (s *Supervisor) finish(logger *slog.Logger, name string, res Result) {
	switch res.Outcome {
	case OutcomeFailed:
		logger.Error("Relay task failed",
			"error", res.Err,
			"kind", errors.KindName(res.Err),
			"failure_policy", s.policy.String())
		s.monitor.Update(name, health.FromError(name, res.Err))
	case OutcomeCancelled:
		logger.Info("Relay task stopped")
		s.monitor.Remove(name)
	default:
		logger.Info("Relay task completed")
		s.monitor.Remove(name)
	}

	if s.metrics != nil {
		s.metrics.TaskFinished(res.Mode, res.Outcome.String())
		s.metrics.RecordHealthStatus(name, res.Outcome != OutcomeFailed)
	}
}

func healthName(mode string, group Group) string {
	return mode + "/" + group.Address
}
