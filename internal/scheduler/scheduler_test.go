package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
	"github.com/ridematch/scheduler/internal/solver"
)

type fakeStore struct {
	mu sync.Mutex

	settings    model.SchedulingSettings
	destination model.Destination
	vehicles    []model.Vehicle
	passengers  []model.Passenger

	savedSolutions int
	runs           []model.RunLogEntry

	saveSolutionDelay time.Duration
}

func (f *fakeStore) GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error) {
	return f.settings, nil
}
func (f *fakeStore) GetDestination(ctx context.Context) (model.Destination, error) {
	return f.destination, nil
}
func (f *fakeStore) GetAvailableVehicles(ctx context.Context) ([]model.Vehicle, error) {
	return f.vehicles, nil
}
func (f *fakeStore) GetAvailablePassengers(ctx context.Context) ([]model.Passenger, error) {
	return f.passengers, nil
}
func (f *fakeStore) SaveSolution(ctx context.Context, solution *model.Solution, solutionDate string) (int64, error) {
	if f.saveSolutionDelay > 0 {
		time.Sleep(f.saveSolutionDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedSolutions++
	return int64(f.savedSolutions), nil
}
func (f *fakeStore) LogSchedulingRun(ctx context.Context, entry model.RunLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, entry)
	return nil
}
func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]model.RunLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs, nil
}
func (f *fakeStore) UpdateSchedulingSettings(ctx context.Context, settings model.SchedulingSettings) error {
	f.settings = settings
	return nil
}
func (f *fakeStore) Close() error { return nil }

type fakeProvider struct{}

func (fakeProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*directions.Route, error) {
	return nil, assert.AnError
}

func roster() *fakeStore {
	return &fakeStore{
		settings: model.SchedulingSettings{Enabled: true, ScheduledTime: 6 * time.Hour},
		destination: model.Destination{
			Name: "Office", Location: geo.Coordinate{Lat: 32.0741, Lng: 34.7922}, TargetArrivalTime: 8 * time.Hour,
		},
		vehicles: []model.Vehicle{
			{ID: 1, Capacity: 3, Start: geo.Coordinate{Lat: 32.10, Lng: 34.80}},
		},
		passengers: []model.Passenger{
			{ID: 1, Location: geo.Coordinate{Lat: 32.09, Lng: 34.81}},
			{ID: 2, Location: geo.Coordinate{Lat: 32.08, Lng: 34.80}},
		},
	}
}

func fastOptions() solver.Options {
	opts := solver.DefaultOptions()
	opts.PopulationSize = 30
	opts.Generations = 20
	return opts
}

func newTestScheduler(st *fakeStore) *Scheduler {
	logging.InitDefaultLogger(logging.DefaultLoggerConfig())
	return New(st, solver.New(), fakeProvider{}, logging.GetLogger(), fastOptions())
}

func TestRunNow_SuccessPersistsSolutionAndLog(t *testing.T) {
	st := roster()
	s := newTestScheduler(st)

	entry, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, entry.Status)
	assert.Equal(t, 1, st.savedSolutions)
	require.Len(t, st.runs, 1)
	assert.Equal(t, model.RunStatusSuccess, st.runs[0].Status)
}

func TestRunNow_EmptyRosterSkips(t *testing.T) {
	st := roster()
	st.passengers = nil
	s := newTestScheduler(st)

	entry, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSkipped, entry.Status)
	assert.Equal(t, 0, st.savedSolutions)
}

func TestRunNow_OverlapGuardRejectsConcurrentRun(t *testing.T) {
	st := roster()
	st.saveSolutionDelay = 200 * time.Millisecond
	s := newTestScheduler(st)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := s.RunNow(context.Background())
			errs[i] = err
		}()
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	errCount := 0
	for _, e := range errs {
		if e != nil {
			errCount++
		}
	}
	assert.Equal(t, 1, errCount)
	assert.Equal(t, 1, st.savedSolutions)
}

func TestStartStop_TransitionsState(t *testing.T) {
	st := roster()
	s := newTestScheduler(st)

	assert.Equal(t, StateStopped, s.State())
	s.Start()
	assert.Equal(t, StateRunning, s.State())
	s.Pause()
	assert.Equal(t, StatePaused, s.State())
	s.Resume()
	assert.Equal(t, StateRunning, s.State())
	s.Stop()
	assert.Equal(t, StateStopped, s.State())
}
