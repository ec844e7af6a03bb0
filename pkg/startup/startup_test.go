package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func recorder(events *[]string, name string, requires ...string) *FuncDependency {
	return &FuncDependency{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			*events = append(*events, "start:"+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			*events = append(*events, "stop:"+name)
			return nil
		},
	}
}

func TestStartup_StartsDependenciesFirstAndStopsInReverse(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 1)
	s.AddDependency(recorder(&events, "http", "engine"))
	s.AddDependency(recorder(&events, "engine", "database"))
	s.AddDependency(recorder(&events, "database"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:engine", "start:http"}, events)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:http", "stop:engine", "stop:database"}, events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesUntilDependencyStarts(t *testing.T) {
	calls := 0
	s := NewStartup(testLogger(), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&FuncDependency{
		Name: "flaky",
		StartFunc: func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("not ready")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestStartup_FailsAfterMaxAttempts(t *testing.T) {
	s := NewStartup(testLogger(), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&FuncDependency{
		Name:      "broken",
		StartFunc: func(context.Context) error { return errors.New("boom") },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("broken"))
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := NewStartup(testLogger(), 1)
	s.AddDependency(&FuncDependency{Name: "api", Requires: []string{"missing"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency 'missing'")
}
