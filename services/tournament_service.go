package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bracketlab/tournament-engine/locks"
	"github.com/bracketlab/tournament-engine/models"
	"github.com/bracketlab/tournament-engine/repositories"
	"github.com/bracketlab/tournament-engine/scheduler"
	"github.com/bracketlab/tournament-engine/storage"
)

type CreateTournamentInput struct {
	Name            string    `json:"name"`
	Discipline      string    `json:"discipline"`
	StartTime       time.Time `json:"start_time"`
	MaxParticipants int       `json:"max_participants"`
}

type UpdateTournamentInput struct {
	Name            string    `json:"name"`
	Discipline      string    `json:"discipline"`
	StartTime       time.Time `json:"start_time"`
	MaxParticipants int       `json:"max_participants"`
}

type JoinTournamentInput struct {
	LicenseNumber string `json:"license_number"`
	Ranking       *int   `json:"ranking"`
}

// TournamentService owns the tournament lifecycle around the bracket engine:
// creation, schedule edits, joins and removals. Every mutation of a
// tournament's participants runs under the per-tournament gate and persists
// the whole aggregate once the in-memory computation has succeeded.
type TournamentService struct {
	repo     repositories.TournamentRepository
	gate     *locks.KeyedMutex
	sched    *scheduler.Scheduler
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewTournamentService(
	repo repositories.TournamentRepository,
	gate *locks.KeyedMutex,
	sched *scheduler.Scheduler,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		repo:     repo,
		gate:     gate,
		sched:    sched,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *TournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(input.Name, input.Discipline, input.StartTime, input.MaxParticipants, 0); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:            strings.TrimSpace(input.Name),
		Discipline:      strings.TrimSpace(input.Discipline),
		OrganizerID:     organizerID,
		StartTime:       input.StartTime,
		MaxParticipants: input.MaxParticipants,
		Participants:    []models.Participant{},
		Bracket:         models.Bracket{},
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.sched.Schedule(t.ID, t.StartTime)
	return t, nil
}

func (s *TournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.attachLogoURL(t)
	return t, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.attachLogoURL(&tournaments[i])
	}
	return tournaments, nil
}

// UpdateTournament edits the tournament details. Editing the start time of a
// bracket-less tournament reschedules its auto-generation timer.
func (s *TournamentService) UpdateTournament(ctx context.Context, id, userID int, input UpdateTournamentInput) (*models.Tournament, error) {
	var updated *models.Tournament
	err := s.gate.Execute(ctx, id, func() error {
		t, err := s.loadOwned(ctx, id, userID)
		if err != nil {
			return err
		}
		if err := validateTournamentInput(input.Name, input.Discipline, input.StartTime, input.MaxParticipants, len(t.Participants)); err != nil {
			return err
		}

		t.Name = strings.TrimSpace(input.Name)
		t.Discipline = strings.TrimSpace(input.Discipline)
		t.StartTime = input.StartTime
		t.MaxParticipants = input.MaxParticipants

		if err := s.repo.Update(ctx, t); err != nil {
			if errors.Is(err, repositories.ErrTournamentNameConflict) {
				return ErrTournamentNameConflict
			}
			return err
		}

		if t.Bracket.IsEmpty() {
			s.sched.Schedule(t.ID, t.StartTime)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachLogoURL(updated)
	return updated, nil
}

func (s *TournamentService) DeleteTournament(ctx context.Context, id, userID int) error {
	return s.gate.Execute(ctx, id, func() error {
		t, err := s.loadOwned(ctx, id, userID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		s.sched.Cancel(id)

		// Best effort: the tournament row is gone either way.
		if t.LogoKey != nil && s.uploader != nil {
			if err := s.uploader.Delete(ctx, *t.LogoKey); err != nil {
				s.logger.Warn("failed to delete tournament logo from storage",
					slog.Int("tournament_id", id),
					slog.String("logo_key", *t.LogoKey),
					slog.Any("error", err))
			}
		}
		return nil
	})
}

// Join registers the user as a participant. The whole check-then-append cycle
// runs under the gate, so two concurrent joins cannot both pass the capacity
// check and overbook the tournament.
func (s *TournamentService) Join(ctx context.Context, tournamentID, userID int, input JoinTournamentInput) (*models.Tournament, error) {
	license := strings.TrimSpace(input.LicenseNumber)
	if license == "" {
		return nil, ErrLicenseNumberRequired
	}

	var joined *models.Tournament
	err := s.gate.Execute(ctx, tournamentID, func() error {
		t, err := s.load(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !t.RegistrationOpen(time.Now()) {
			return ErrRegistrationClosed
		}
		if t.HasParticipant(userID) {
			return ErrAlreadyJoined
		}
		if t.HasLicenseNumber(license) {
			return ErrLicenseNumberTaken
		}
		if t.Full() {
			return ErrTournamentFull
		}

		t.Participants = append(t.Participants, models.Participant{
			UserID:        userID,
			LicenseNumber: license,
			Ranking:       input.Ranking,
			JoinedAt:      time.Now().UTC(),
		})
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		joined = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachLogoURL(joined)
	return joined, nil
}

// RemoveParticipant drops a participant before the bracket exists. Once the
// bracket is generated the field is frozen.
func (s *TournamentService) RemoveParticipant(ctx context.Context, tournamentID, organizerID, userID int) (*models.Tournament, error) {
	var updated *models.Tournament
	err := s.gate.Execute(ctx, tournamentID, func() error {
		t, err := s.loadOwned(ctx, tournamentID, organizerID)
		if err != nil {
			return err
		}
		if !t.Bracket.IsEmpty() {
			return ErrParticipantsLocked
		}

		kept := t.Participants[:0]
		removed := false
		for _, p := range t.Participants {
			if p.UserID == userID {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if !removed {
			return ErrParticipantNotFound
		}
		t.Participants = kept

		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachLogoURL(updated)
	return updated, nil
}

// UploadLogo stores the tournament logo in object storage and records its key.
func (s *TournamentService) UploadLogo(ctx context.Context, tournamentID, userID int, contentType string, body io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrLogoStorageUnavailable
	}
	ext, ok := logoExtension(contentType)
	if !ok {
		return nil, ErrLogoContentTypeUnsupported
	}

	t, err := s.loadOwned(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("tournaments/%d/logo%s", tournamentID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}
	if err := s.repo.UpdateLogoKey(ctx, tournamentID, &key); err != nil {
		return nil, err
	}

	t.LogoKey = &key
	s.attachLogoURL(t)
	return t, nil
}

// RemoveLogo deletes the tournament logo from object storage and clears the
// recorded key.
func (s *TournamentService) RemoveLogo(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrLogoStorageUnavailable
	}

	t, err := s.loadOwned(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	if t.LogoKey == nil {
		return nil, ErrLogoNotSet
	}

	if err := s.uploader.Delete(ctx, *t.LogoKey); err != nil {
		return nil, fmt.Errorf("failed to delete tournament logo: %w", err)
	}
	if err := s.repo.UpdateLogoKey(ctx, tournamentID, nil); err != nil {
		return nil, err
	}

	t.LogoKey = nil
	t.LogoURL = nil
	return t, nil
}

func logoExtension(contentType string) (string, bool) {
	switch contentType {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}

func (s *TournamentService) attachLogoURL(t *models.Tournament) {
	if t == nil || t.LogoKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*t.LogoKey)
	t.LogoURL = &url
}

func (s *TournamentService) load(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TournamentService) loadOwned(ctx context.Context, id, userID int) (*models.Tournament, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OrganizerID != userID {
		return nil, ErrForbiddenOperation
	}
	return t, nil
}

func validateTournamentInput(name, discipline string, startTime time.Time, maxParticipants, currentParticipants int) error {
	if strings.TrimSpace(name) == "" {
		return ErrTournamentNameRequired
	}
	if strings.TrimSpace(discipline) == "" {
		return ErrDisciplineRequired
	}
	if !startTime.After(time.Now()) {
		return ErrStartTimeNotFuture
	}
	if maxParticipants < 2 || maxParticipants < currentParticipants {
		return ErrInvalidCapacity
	}
	return nil
}
