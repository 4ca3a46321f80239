package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bracketlab/tournament-engine/brackets"
	"github.com/bracketlab/tournament-engine/locks"
	"github.com/bracketlab/tournament-engine/models"
	"github.com/bracketlab/tournament-engine/repositories"
	"github.com/bracketlab/tournament-engine/scheduler"
)

// BracketService drives the bracket engine for a tournament: organizer-
// triggered generation and participant result submissions. Both operations
// are read-modify-write cycles under the per-tournament gate, the same gate
// the scheduler's timer fires compete for, so a manual generation racing a
// scheduled one serializes and the loser observes the bracket already
// populated.
type BracketService struct {
	repo   repositories.TournamentRepository
	gate   *locks.KeyedMutex
	sched  *scheduler.Scheduler
	hub    *brackets.Hub
	logger *slog.Logger
}

func NewBracketService(
	repo repositories.TournamentRepository,
	gate *locks.KeyedMutex,
	sched *scheduler.Scheduler,
	hub *brackets.Hub,
	logger *slog.Logger,
) *BracketService {
	return &BracketService{
		repo:   repo,
		gate:   gate,
		sched:  sched,
		hub:    hub,
		logger: logger,
	}
}

// GenerateBracket builds and persists the bracket on organizer demand. The
// bracket is created exactly once: a second call, or a call racing the
// scheduler, fails with ErrBracketAlreadyGenerated.
func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	var generated *models.Tournament
	err := s.gate.Execute(ctx, tournamentID, func() error {
		t, err := s.repo.GetByID(ctx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if t.OrganizerID != userID {
			return ErrForbiddenOperation
		}
		if !t.Bracket.IsEmpty() {
			return ErrBracketAlreadyGenerated
		}

		bracket, err := brackets.Build(t.Participants)
		if err != nil {
			return err
		}
		t.Bracket = bracket
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		generated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sched.Cancel(tournamentID)
	s.logger.Info("bracket generated manually",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participants", len(generated.Participants)))
	s.hub.BroadcastToRoom(brackets.RoomID(tournamentID), brackets.EventBracketGenerated, generated)
	return generated, nil
}

// SubmitResult records a WIN/LOSS claim from a participant and advances the
// bracket. The updated aggregate is persisted once, after the in-memory
// advance succeeded, so storage never observes a partially advanced bracket.
func (s *BracketService) SubmitResult(ctx context.Context, tournamentID, userID int, result models.Result) (*models.Tournament, brackets.Outcome, error) {
	if !result.Valid() {
		return nil, brackets.OutcomeRecorded, ErrInvalidResult
	}

	var (
		updated *models.Tournament
		outcome brackets.Outcome
	)
	err := s.gate.Execute(ctx, tournamentID, func() error {
		t, err := s.repo.GetByID(ctx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if t.Bracket.IsEmpty() {
			return ErrBracketNotGenerated
		}

		outcome, err = brackets.Submit(t.Bracket, userID, result)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, brackets.OutcomeRecorded, err
	}

	event := brackets.EventMatchUpdated
	if outcome == brackets.OutcomeBracketComplete {
		event = brackets.EventTournamentCompleted
		s.logger.Info("tournament completed",
			slog.Int("tournament_id", tournamentID),
			slog.Any("champion_id", updated.Bracket.ChampionID()))
	}
	s.hub.BroadcastToRoom(brackets.RoomID(tournamentID), event, updated)
	return updated, outcome, nil
}
