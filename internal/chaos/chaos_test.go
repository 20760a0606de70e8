package chaos_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/catalog"
	"libradesk/internal/chaos"
	"libradesk/internal/eventstore"
	"libradesk/internal/lifecycle"
	"libradesk/internal/records/recordstest"
)

func quietEngine() *chaos.Engine {
	return chaos.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func constant(name string, v float64, threshold chaos.Threshold) chaos.Metric {
	return chaos.Metric{
		Name:      name,
		Query:     func(context.Context) (float64, error) { return v, nil },
		Threshold: threshold,
	}
}

func TestThreshold_Holds(t *testing.T) {
	tests := []struct {
		op    string
		value float64
		want  bool
	}{
		{">", 2, true},
		{">", 1, false},
		{"<", 0, true},
		{">=", 1, true},
		{"<=", 1, true},
		{"<=", 2, false},
		{"==", 1, true},
		{"!=", 1, false},
	}
	for _, tt := range tests {
		if got := (chaos.Threshold{Operator: tt.op, Value: 1}).Holds(tt.value); got != tt.want {
			t.Errorf("%v %s 1 = %v, want %v", tt.value, tt.op, got, tt.want)
		}
	}
}

func TestRunExperiment_AbortsOnInvalidSteadyState(t *testing.T) {
	ran := false
	exp := chaos.Experiment{
		Name:        "broken",
		SteadyState: []chaos.Metric{constant("errors", 3, chaos.Threshold{Operator: "==", Value: 0})},
		Method: []chaos.Action{{Execute: func(context.Context) error {
			ran = true
			return nil
		}}},
		Duration: time.Millisecond,
	}

	result, err := quietEngine().RunExperiment(context.Background(), exp)
	require.ErrorIs(t, err, chaos.ErrSteadyStateInvalid)
	assert.False(t, result.SteadyStateValid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, 3.0, result.Violations[0].Actual)
	assert.False(t, ran)
}

func TestRunExperiment_RecordsRecovery(t *testing.T) {
	var broken atomic.Bool
	var samples atomic.Int64
	metric := chaos.Metric{
		Name: "failures",
		Query: func(context.Context) (float64, error) {
			samples.Add(1)
			if broken.Load() && samples.Load() < 4 {
				return 1, nil
			}
			return 0, nil
		},
		Threshold: chaos.Threshold{Operator: "==", Value: 0},
	}

	engine := quietEngine()
	exp := chaos.Experiment{
		Name:        "flaky",
		SteadyState: []chaos.Metric{metric},
		Method: []chaos.Action{
			{Target: "db", Execute: func(context.Context) error {
				broken.Store(true)
				return nil
			}},
			{Target: "cache", Execute: func(context.Context) error { return errors.New("cache unreachable") }},
		},
		Rollback: []chaos.Action{{Execute: func(context.Context) error {
			broken.Store(false)
			return nil
		}}},
		Validation: []chaos.Assertion{{
			Metric:    "failures",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "failures should clear",
		}},
		Duration:       50 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
	}

	result, err := engine.RunExperiment(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, result.SteadyStateValid)
	assert.True(t, result.HypothesisHeld, "failed: %v", result.FailedAssertions)
	assert.NotEmpty(t, result.Violations)
	require.NotNil(t, result.MTTR)
	require.Len(t, result.ErrorEvents, 1)
	assert.Equal(t, "cache", result.ErrorEvents[0].Component)
	assert.Len(t, engine.Results(), 1)
}

func TestRunExperiment_FailedAssertion(t *testing.T) {
	exp := chaos.Experiment{
		Name:        "always-one",
		SteadyState: []chaos.Metric{constant("winners", 1, chaos.Threshold{Operator: "<=", Value: 1})},
		Validation: []chaos.Assertion{{
			Metric:    "winners",
			Condition: func(v float64) bool { return v == 2 },
			Message:   "two winners expected",
		}},
		Duration:       10 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
	}

	result, err := quietEngine().RunExperiment(context.Background(), exp)
	require.NoError(t, err)
	assert.False(t, result.HypothesisHeld)
	assert.Equal(t, []string{"two winners expected"}, result.FailedAssertions)
}

func TestExecuteGameDay_ReportsViolations(t *testing.T) {
	ok := chaos.Experiment{
		Name:        "ok",
		SteadyState: []chaos.Metric{constant("m", 0, chaos.Threshold{Operator: "==", Value: 0})},
		Duration:    time.Millisecond,
	}
	bad := ok
	bad.Name = "bad"
	bad.SteadyState = []chaos.Metric{constant("m", 1, chaos.Threshold{Operator: "==", Value: 0})}

	engine := quietEngine()
	require.NoError(t, engine.ExecuteGameDay(context.Background(), chaos.GameDay{Name: "green", Scenarios: []chaos.Experiment{ok}}))

	err := engine.ExecuteGameDay(context.Background(), chaos.GameDay{Name: "red", Scenarios: []chaos.Experiment{ok, bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func fastOptions() chaos.Options {
	return chaos.Options{Concurrency: 6, Duration: 20 * time.Millisecond, Interval: 5 * time.Millisecond}
}

func TestConcurrentIssueRace(t *testing.T) {
	db := recordstest.NewDB(t)
	lc := lifecycle.Config{Events: eventstore.NewEventStore(), Locks: lifecycle.NewKeyedMutex()}

	result, err := quietEngine().RunExperiment(context.Background(), chaos.ConcurrentIssueRace(db, lc, fastOptions()))
	require.NoError(t, err)
	assert.Empty(t, result.ErrorEvents)
	assert.True(t, result.HypothesisHeld, "failed: %v", result.FailedAssertions)
}

func TestConcurrentIssueRace_DetectsInconsistentArticle(t *testing.T) {
	db := recordstest.NewDB(t)
	lc := lifecycle.Config{Events: eventstore.NewEventStore(), Locks: lifecycle.NewKeyedMutex()}
	require.NoError(t, catalog.ArticlesTable(db).Save(context.Background(), catalog.Article{
		ID: uuid.NewString(), Name: "Orphan", Status: catalog.Issued,
	}))

	_, err := quietEngine().RunExperiment(context.Background(), chaos.ConcurrentIssueRace(db, lc, fastOptions()))
	assert.ErrorIs(t, err, chaos.ErrSteadyStateInvalid)
}

func TestMembershipOverlapRace(t *testing.T) {
	db := recordstest.NewDB(t)
	lc := lifecycle.Config{Events: eventstore.NewEventStore(), Locks: lifecycle.NewKeyedMutex()}

	engine := quietEngine()
	engine.RegisterExperiments(db, lc, fastOptions())
	require.Len(t, engine.Experiments(), 2)

	require.NoError(t, engine.ExecuteGameDay(context.Background(), chaos.GameDay{
		Name:      "consistency",
		Scenarios: engine.Experiments(),
	}))
	for _, r := range engine.Results() {
		assert.True(t, r.HypothesisHeld, "%s failed: %v", r.ExperimentName, r.FailedAssertions)
	}
}
