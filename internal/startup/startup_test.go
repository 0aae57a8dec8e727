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

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.SetBackoffUnit(time.Millisecond)
	return s
}

func recorder(log *[]string, name string) *Dependency {
	return &Dependency{
		Name:    name,
		StartFn: func(context.Context) error { *log = append(*log, "start "+name); return nil },
		StopFn:  func(context.Context) error { *log = append(*log, "stop "+name); return nil },
	}
}

func TestStartOrder(t *testing.T) {
	var log []string
	s := newTestStartup(1)

	server := recorder(&log, "http")
	server.Needs = []string{"database", "redis"}
	s.AddDependency(server)
	s.AddDependency(recorder(&log, "database"))
	s.AddDependency(recorder(&log, "redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start http"}, log)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	log = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop http", "stop redis", "stop database"}, log)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartRetries(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		maxAttempts int
		wantErr     bool
		wantCalls   int
	}{
		{name: "first attempt", failures: 0, maxAttempts: 3, wantCalls: 1},
		{name: "recovers", failures: 2, maxAttempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, maxAttempts: 3, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			s := newTestStartup(tt.maxAttempts)
			s.AddDependency(&Dependency{
				Name: "database",
				StartFn: func(context.Context) error {
					calls++
					if calls <= tt.failures {
						return errors.New("connection refused")
					}
					return nil
				},
			})

			err := s.Start(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection refused")
				assert.Equal(t, StartupStatusFailed, s.Status("database"))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestStartRejectsBadGraph(t *testing.T) {
	t.Run("unknown dependency", func(t *testing.T) {
		s := newTestStartup(1)
		s.AddDependency(&Dependency{Name: "http", Needs: []string{"database"}})
		assert.ErrorContains(t, s.Start(context.Background()), "unknown dependency")
	})

	t.Run("cycle", func(t *testing.T) {
		s := newTestStartup(1)
		s.AddDependency(&Dependency{Name: "a", Needs: []string{"b"}})
		s.AddDependency(&Dependency{Name: "b", Needs: []string{"a"}})
		assert.ErrorContains(t, s.Start(context.Background()), "cycle")
	})
}

func TestStopContinuesAfterFailure(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(recorder(&log, "database"))
	s.AddDependency(&Dependency{
		Name:   "kafka",
		StopFn: func(context.Context) error { return errors.New("close failed") },
	})

	require.NoError(t, s.Start(context.Background()))
	log = nil

	err := s.Stop(context.Background())
	assert.EqualError(t, err, "close failed")
	assert.Equal(t, []string{"stop database"}, log)
}
