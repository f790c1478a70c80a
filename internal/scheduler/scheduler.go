// Package scheduler drives the daily pipeline: it fires at most once per
// scheduled minute per day, coordinating Solver, RoutingEngine, and Store
// writes, and cooperates with service lifecycle (start/pause/resume/stop).
// The loop design is grounded on the teacher's ticker-driven job scheduler:
// a single goroutine polling a flag, not a full job queue.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/model"
	"github.com/ridematch/scheduler/internal/routingengine"
	"github.com/ridematch/scheduler/internal/solver"
	"github.com/ridematch/scheduler/internal/store"
)

// State is the scheduler's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateDraining:
		return "Draining"
	default:
		return "Unknown"
	}
}

const (
	tickInterval  = 60 * time.Second
	drainDeadline = 30 * time.Second
)

// Scheduler owns the Store connection and drives the daily pipeline. The
// Solver and RoutingEngine never touch the Store directly (spec §5).
type Scheduler struct {
	store    store.Store
	solver   *solver.Solver
	routing  *routingengine.Engine
	logger   *logging.Logger
	solverOpts solver.Options

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	stopped chan struct{}

	isExecuting atomic.Bool
	now         func() time.Time
}

// New builds a Scheduler. provider is wrapped into a RoutingEngine
// internally via routingengine.New.
func New(st store.Store, sv *solver.Solver, provider directions.Provider, logger *logging.Logger, opts solver.Options) *Scheduler {
	return &Scheduler{
		store:      st,
		solver:     sv,
		routing:    routingengine.New(provider, logger),
		logger:     logger,
		solverOpts: opts,
		state:      StateStopped,
		now:        time.Now,
	}
}

// Start transitions Stopped -> Running and begins the 60s tick loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.state = StateRunning

	go s.loop(ctx, s.stopped)
}

// Pause transitions Running -> Paused: ticks keep firing internally but the
// minute-equality check never triggers a run while paused.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StatePaused
	}
}

// Resume transitions Paused -> Running.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePaused {
		s.state = StateRunning
	}
}

// Stop initiates draining: the tick source is disabled immediately, then up
// to 30s is spent waiting for an in-flight pipeline run to finish before the
// Store connection is closed regardless (spec §4.3).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateDraining
	cancel := s.cancel
	stopped := s.stopped
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}

	deadline := time.Now().Add(drainDeadline)
	for s.isExecuting.Load() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store during drain", "error", err)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick implements the per-minute check (spec §4.3 steps 1-3).
func (s *Scheduler) tick(ctx context.Context) {
	if s.State() != StateRunning {
		return
	}
	if !s.isExecuting.CompareAndSwap(false, true) {
		return // overlap guard: a run is already in flight
	}

	go func() {
		defer s.isExecuting.Store(false)

		settings, err := s.store.GetSchedulingSettings(ctx)
		if err != nil {
			s.logger.Error("failed to read scheduling settings", "error", err)
			return
		}
		if !settings.Enabled {
			return
		}

		now := s.now()
		if now.Hour() != int(settings.ScheduledTime/time.Hour) ||
			now.Minute() != int((settings.ScheduledTime%time.Hour)/time.Minute) {
			return
		}

		// Stop cancels ctx before draining; the run itself must outlive that
		// so an in-flight pipeline gets the drain window to finish.
		s.runPipeline(context.WithoutCancel(ctx))
	}()
}

// RunNow executes the pipeline synchronously outside of the tick loop,
// sharing the same overlap guard as tick-triggered runs (spec §4.3).
func (s *Scheduler) RunNow(ctx context.Context) (*model.RunLogEntry, error) {
	if !s.isExecuting.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("a scheduling run is already in progress")
	}
	defer s.isExecuting.Store(false)

	return s.runPipeline(ctx), nil
}

// runPipeline implements the pipeline task (spec §4.3 steps 1-9).
func (s *Scheduler) runPipeline(ctx context.Context) *model.RunLogEntry {
	start := s.now()

	destination, err := s.store.GetDestination(ctx)
	if err != nil {
		return s.logOutcome(start, model.RunStatusError, 0, 0, fmt.Sprintf("failed to load destination: %v", err))
	}

	vehicles, err := s.store.GetAvailableVehicles(ctx)
	if err != nil {
		return s.logOutcome(start, model.RunStatusError, 0, 0, fmt.Sprintf("failed to load vehicles: %v", err))
	}
	passengers, err := s.store.GetAvailablePassengers(ctx)
	if err != nil {
		return s.logOutcome(start, model.RunStatusError, 0, 0, fmt.Sprintf("failed to load passengers: %v", err))
	}

	if len(vehicles) == 0 || len(passengers) == 0 {
		return s.logOutcome(start, model.RunStatusSkipped, 0, 0, "empty roster: no available vehicles or passengers")
	}

	solution, err := s.solver.Solve(passengers, vehicles, destination, s.solverOpts)
	if err != nil {
		return s.logOutcome(start, model.RunStatusFailed, 0, 0, fmt.Sprintf("solver failed: %v", err))
	}

	solutionDate := start.AddDate(0, 0, 1)
	targetArrival := time.Date(
		solutionDate.Year(), solutionDate.Month(), solutionDate.Day(),
		0, 0, 0, 0, start.Location(),
	).Add(destination.TargetArrivalTime)

	if _, err := s.routing.Route(ctx, solution, destination, targetArrival); err != nil {
		return s.logOutcome(start, model.RunStatusError, 0, 0, fmt.Sprintf("routing failed: %v", err))
	}

	if _, err := s.store.SaveSolution(ctx, solution, solutionDate.Format("2006-01-02")); err != nil {
		return s.logOutcome(start, model.RunStatusError, 0, 0, fmt.Sprintf("failed to save solution: %v", err))
	}

	return s.logOutcome(start, model.RunStatusSuccess, solution.UsedVehicleCount(), solution.AssignedPassengerCount(), "")
}

func (s *Scheduler) logOutcome(runTime time.Time, status model.RunStatus, routes, passengersAssigned int, message string) *model.RunLogEntry {
	entry := model.RunLogEntry{
		RunTime:            runTime,
		Status:             status,
		RoutesGenerated:    routes,
		PassengersAssigned: passengersAssigned,
		Message:            message,
	}

	var logErr error
	if status == model.RunStatusError || status == model.RunStatusFailed {
		logErr = fmt.Errorf("%s", message)
	}
	s.logger.LogRun(string(status), routes, passengersAssigned, time.Since(runTime), logErr)

	jobStatus := "completed"
	if logErr != nil {
		jobStatus = "failed"
	}
	s.logger.LogJobExecution(runTime.Format("2006-01-02T15:04:05"), "daily-matching-run", jobStatus, time.Since(runTime), logErr)

	if err := s.store.LogSchedulingRun(context.Background(), entry); err != nil {
		s.logger.Error("failed to persist scheduling run log", "error", err)
	}
	return &entry
}
