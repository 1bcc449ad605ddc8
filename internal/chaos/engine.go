// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment defines a fault injection run against a live system.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	// SampleInterval defaults to one second.
	SampleInterval time.Duration
}

// Metric is a measurable system property.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action injects or removes a fault.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion is checked against the last observation of Metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Failed           []string               `json:"failed_assertions"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
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

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer      trace.Tracer
	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine() *Engine {
	return &Engine{tracer: otel.Tracer("nftmarket/chaos")}
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run validates steady state, injects the method, samples the steady state
// metrics for Duration, rolls back and evaluates the assertions.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	logger := zap.L().With(zap.String("experiment", exp.Name))
	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.steadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	interval := exp.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	observeCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	var recoveryStart time.Time
	recovered := false
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

observe:
	for {
		select {
		case <-observeCtx.Done():
			break observe
		case <-ticker.C:
			for _, metric := range exp.SteadyState {
				ok := e.sample(ctx, metric, result)
				switch {
				case !ok && recoveryStart.IsZero():
					recoveryStart = time.Now()
				case ok && !recoveryStart.IsZero() && !recovered:
					mttr := time.Since(recoveryStart)
					result.MTTR = &mttr
					recovered = true
				}
			}
		}
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
			logger.With(zap.String("target", action.Target), zap.Error(err)).Error("Rollback action failed")
		}
	}

	// one sample after rollback so every metric has a final observation
	for _, metric := range exp.SteadyState {
		e.sample(ctx, metric, result)
	}

	span.AddEvent("validating_assertions")
	result.Failed = e.failedAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.Failed) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	logger.With(
		zap.Bool("hypothesisHeld", result.HypothesisHeld),
		zap.Int("violations", len(result.Violations)),
		zap.Int("errors", len(result.ErrorEvents)),
	).Info("Experiment finished")
	return result, nil
}

// sample records one observation and reports whether it met the threshold.
func (e *Engine) sample(ctx context.Context, metric Metric, result *Result) bool {
	value, err := metric.Query(ctx)
	if err != nil {
		result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
			Timestamp: time.Now(),
			Error:     err.Error(),
			Component: metric.Name,
		})
		return false
	}

	now := time.Now()
	result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: now, Value: value})
	if !metric.Threshold.holds(value) {
		result.Violations = append(result.Violations, MetricViolation{
			MetricName: metric.Name,
			Expected:   metric.Threshold.Value,
			Actual:     value,
			Timestamp:  now,
		})
		return false
	}
	return true
}

func (e *Engine) steadyState(ctx context.Context, metrics []Metric) []MetricViolation {
	var violations []MetricViolation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			value = -1
		}
		if err != nil || !metric.Threshold.holds(value) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
	return violations
}

func (e *Engine) failedAssertions(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, a := range assertions {
		observations := result.Observations[a.Metric]
		if len(observations) == 0 || !a.Condition(observations[len(observations)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}

func (t Threshold) holds(value float64) bool {
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

// GameDay is a series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	Pause     time.Duration
}

// ExecuteGameDay runs every scenario and writes a report to out. It returns
// an error if any hypothesis did not hold.
func (e *Engine) ExecuteGameDay(ctx context.Context, out io.Writer, gameDay GameDay) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	fmt.Fprintf(out, "Game Day: %s (%s)\n", gameDay.Name, gameDay.Date.Format(time.RFC3339))

	failures := 0
	for i, scenario := range gameDay.Scenarios {
		fmt.Fprintf(out, "\nExperiment %d/%d: %s\n", i+1, len(gameDay.Scenarios), scenario.Name)
		fmt.Fprintf(out, "Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.Run(ctx, scenario)
		if err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			failures++
			continue
		}
		if !result.HypothesisHeld {
			failures++
		}
		Report(out, result)

		if gameDay.Pause > 0 && i < len(gameDay.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d experiments failed", failures, len(gameDay.Scenarios))
	}
	return nil
}

func Report(out io.Writer, result *Result) {
	if result.HypothesisHeld {
		fmt.Fprintln(out, "Hypothesis held")
	} else {
		fmt.Fprintln(out, "Hypothesis violated")
		for _, msg := range result.Failed {
			fmt.Fprintf(out, "   - %s\n", msg)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Fprintf(out, "Violations detected: %d\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Fprintf(out, "   - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
		}
	}
	if len(result.ErrorEvents) > 0 {
		fmt.Fprintf(out, "Injected errors observed: %d\n", len(result.ErrorEvents))
	}
	if result.MTTR != nil {
		fmt.Fprintf(out, "MTTR: %s\n", *result.MTTR)
	}
	fmt.Fprintf(out, "Duration: %s\n", result.Duration)
}
