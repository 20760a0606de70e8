// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/records"
)

// ErrSteadyStateInvalid aborts an experiment whose steady state does not hold before injection.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment defines a chaos engineering test.
type Experiment struct {
	Name           string
	Hypothesis     string
	SteadyState    []Metric
	Method         []Action
	Rollback       []Action
	Validation     []Assertion
	Duration       time.Duration
	SampleInterval time.Duration
}

// Metric defines a measurable system property.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Holds reports whether value satisfies the threshold.
func (t Threshold) Holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// SQLMetric builds a metric from a query returning a single number.
func SQLMetric(name string, h records.Handle, query string, threshold Threshold) Metric {
	return Metric{
		Name: name,
		Query: func(ctx context.Context) (float64, error) {
			var v float64
			if err := h.QueryRowxContext(ctx, query).Scan(&v); err != nil {
				return 0, fmt.Errorf("failed to sample %s: %w", name, err)
			}
			return v, nil
		},
		Threshold: threshold,
	}
}

// Action is a fault injection or recovery step.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion validates the final observation of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// ExperimentResult captures experiment execution data.
type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates chaos experiments.
type Engine struct {
	tracer      trace.Tracer
	logger      *slog.Logger
	experiments []Experiment
	results     []ExperimentResult
	mu          sync.Mutex
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tracer: otel.Tracer("libradesk/chaos"),
		logger: logger,
	}
}

// RegisterExperiment adds an experiment to the suite.
func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Results returns the results of every experiment run so far.
func (e *Engine) Results() []ExperimentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExperimentResult(nil), e.results...)
}

// RunExperiment validates the steady state, runs the method, samples the
// steady-state metrics for exp.Duration, rolls back and checks the assertions.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*ExperimentResult, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.validateSteadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	e.observe(ctx, exp, result)

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.FailedAssertions = validateAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// observe samples every steady-state metric each interval until the
// observation window closes, plus once more at the end.
func (e *Engine) observe(ctx context.Context, exp Experiment, result *ExperimentResult) {
	interval := exp.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}

	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var recoveryStart time.Time
	recovered := false
	sample := func() {
		for _, metric := range exp.SteadyState {
			value, err := metric.Query(ctx)
			if err != nil {
				result.recordError(metric.Name, err)
				continue
			}

			now := time.Now()
			result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: now, Value: value})

			if !metric.Threshold.Holds(value) {
				if recoveryStart.IsZero() {
					recoveryStart = now
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: metric.Name,
					Expected:   metric.Threshold.Value,
					Actual:     value,
					Timestamp:  now,
				})
			} else if !recoveryStart.IsZero() && !recovered {
				mttr := now.Sub(recoveryStart)
				result.MTTR = &mttr
				recovered = true
			}
		}
	}

observation:
	for {
		select {
		case <-observationCtx.Done():
			break observation
		case <-ticker.C:
			sample()
		}
	}
	if ctx.Err() == nil {
		sample()
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) []MetricViolation {
	var violations []MetricViolation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "steady-state metric failed", "metric", metric.Name, "error", err)
			value = -1
		} else if metric.Threshold.Holds(value) {
			continue
		}
		violations = append(violations, MetricViolation{
			MetricName: metric.Name,
			Expected:   metric.Threshold.Value,
			Actual:     value,
			Timestamp:  time.Now(),
		})
	}
	return violations
}

// validateAssertions returns the messages of the assertions that do not hold
// for the final observation of their metric.
func validateAssertions(assertions []Assertion, result *ExperimentResult) []string {
	var failed []string
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 || !assertion.Condition(observations[len(observations)-1].Value) {
			failed = append(failed, assertion.Message)
		}
	}
	return failed
}

func (r *ExperimentResult) recordError(component string, err error) {
	r.ErrorEvents = append(r.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}

// GameDay is a series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	Pause     time.Duration
}

// ExecuteGameDay runs every scenario and returns an error when any
// hypothesis was violated or any experiment could not run.
func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	e.logger.InfoContext(ctx, "starting game day", "name", gameDay.Name, "date", gameDay.Date.Format(time.DateOnly))

	var failed []string
	for i, scenario := range gameDay.Scenarios {
		if i > 0 && gameDay.Pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}

		logger := e.logger.With("experiment", scenario.Name, "index", i+1, "of", len(gameDay.Scenarios))
		logger.InfoContext(ctx, "running experiment", "hypothesis", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			logger.ErrorContext(ctx, "experiment failed", "error", err, "violations", len(result.Violations))
			failed = append(failed, scenario.Name)
			continue
		}
		e.logResult(ctx, logger, result)
		if !result.HypothesisHeld {
			failed = append(failed, scenario.Name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("game day %q: hypotheses violated in %v", gameDay.Name, failed)
	}
	return nil
}

func (e *Engine) logResult(ctx context.Context, logger *slog.Logger, result *ExperimentResult) {
	attrs := []any{
		"hypothesis_held", result.HypothesisHeld,
		"violations", len(result.Violations),
		"errors", len(result.ErrorEvents),
		"duration", result.Duration,
	}
	if result.MTTR != nil {
		attrs = append(attrs, "mttr", *result.MTTR)
	}

	if result.HypothesisHeld {
		logger.InfoContext(ctx, "hypothesis held", attrs...)
		return
	}
	logger.WarnContext(ctx, "hypothesis violated", append(attrs, "failed_assertions", result.FailedAssertions)...)
	for _, v := range result.Violations {
		logger.WarnContext(ctx, "metric violation", "metric", v.MetricName, "expected", v.Expected, "actual", v.Actual)
	}
}
