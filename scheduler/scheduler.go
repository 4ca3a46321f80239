// Package scheduler arms one timer per tournament that triggers automatic
// bracket generation at the scheduled start time. The timer map is pure
// process state: it is rebuilt from storage on boot via RecoverPending and
// torn down by Shutdown, never expected to survive a restart on its own.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bracketlab/tournament-engine/brackets"
	"github.com/bracketlab/tournament-engine/locks"
	"github.com/bracketlab/tournament-engine/repositories"
)

type Scheduler struct {
	repo   repositories.TournamentRepository
	gate   *locks.KeyedMutex
	hub    *brackets.Hub
	logger *slog.Logger

	mu     sync.Mutex
	timers map[int]*time.Timer
	closed bool
}

func New(repo repositories.TournamentRepository, gate *locks.KeyedMutex, hub *brackets.Hub, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		gate:   gate,
		hub:    hub,
		logger: logger,
		timers: make(map[int]*time.Timer),
	}
}

// Schedule arms (or re-arms) the auto-generation timer for a tournament.
// Replacing cancels any prior timer for the same id. A start time that has
// already passed fires immediately; the fire path re-checks the tournament
// state, so a stale fire degrades to a no-op.
func (s *Scheduler) Schedule(tournamentID int, startAt time.Time) {
	delay := time.Until(startAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[tournamentID]; ok {
		timer.Stop()
	}
	s.timers[tournamentID] = time.AfterFunc(delay, func() { s.fire(tournamentID) })

	s.logger.Info("bracket generation scheduled",
		slog.Int("tournament_id", tournamentID),
		slog.Time("start_at", startAt))
}

// Cancel drops the pending timer for a tournament, if any. Cancelling after
// the fire started has no effect; the fire re-checks state under the gate.
func (s *Scheduler) Cancel(tournamentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[tournamentID]; ok {
		timer.Stop()
		delete(s.timers, tournamentID)
	}
}

// RecoverPending scans storage for tournaments without a bracket and
// re-establishes their timers: future start times get a pending timer,
// overdue ones fire as if the timer had just elapsed. Returns the number of
// tournaments scheduled.
func (s *Scheduler) RecoverPending(ctx context.Context) (int, error) {
	tournaments, err := s.repo.ListPendingBracketGeneration(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range tournaments {
		s.Schedule(t.ID, t.StartTime)
	}
	return len(tournaments), nil
}

// Shutdown stops every pending timer and refuses further scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// fire runs when a tournament's start time arrives. It competes for the same
// per-tournament gate as regular requests: if a manual generation got there
// first, the re-fetched tournament already has a bracket and the fire is a
// no-op. Failures are logged and swallowed; there is no synchronous caller to
// report to and no automatic retry — the organizer can still generate
// manually.
func (s *Scheduler) fire(tournamentID int) {
	s.mu.Lock()
	delete(s.timers, tournamentID)
	s.mu.Unlock()

	ctx := context.Background()
	err := s.gate.Execute(ctx, tournamentID, func() error {
		t, err := s.repo.GetByID(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !t.Bracket.IsEmpty() {
			s.logger.Info("bracket already generated, skipping scheduled generation",
				slog.Int("tournament_id", tournamentID))
			return nil
		}
		if len(t.Participants) < 2 {
			s.logger.Info("not enough participants for scheduled generation",
				slog.Int("tournament_id", tournamentID),
				slog.Int("participants", len(t.Participants)))
			return nil
		}

		bracket, err := brackets.Build(t.Participants)
		if err != nil {
			return err
		}
		t.Bracket = bracket
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}

		s.logger.Info("bracket generated on schedule",
			slog.Int("tournament_id", tournamentID),
			slog.Int("participants", len(t.Participants)))
		if s.hub != nil {
			s.hub.BroadcastToRoom(brackets.RoomID(tournamentID), brackets.EventBracketGenerated, t)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("scheduled bracket generation failed",
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
	}
}
