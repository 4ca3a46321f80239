package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bracketlab/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
)

type ListTournamentsFilter struct {
	OrganizerID *int
	Limit       int
	Offset      int
}

// TournamentRepository persists the tournament aggregate. Participants and
// bracket are stored as JSONB documents on the tournament row, so Update
// writes the whole aggregate in a single statement: the core computes the new
// state in memory and persists it all-or-nothing.
type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	Delete(ctx context.Context, id int) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error

	// ListPendingBracketGeneration returns every tournament whose bracket is
	// still empty, regardless of start time. The scheduler re-arms timers for
	// future ones and fires overdue ones immediately on startup.
	ListPendingBracketGeneration(ctx context.Context) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, discipline, organizer_id, start_time, max_participants,
	participants, bracket, logo_key, created_at`

const selectTournamentBase = `SELECT` + tournamentColumns + `
	FROM tournaments`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	participants, bracket, err := marshalAggregate(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tournaments (
			name, discipline, organizer_id, start_time, max_participants,
			participants, bracket, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		t.Name, t.Discipline, t.OrganizerID, t.StartTime, t.MaxParticipants,
		participants, bracket, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := selectTournamentBase + ` WHERE id = $1`

	t, err := scanTournament(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := selectTournamentBase + ` WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}

	query += " ORDER BY start_time DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	participants, bracket, err := marshalAggregate(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE tournaments SET
			name = $1,
			discipline = $2,
			start_time = $3,
			max_participants = $4,
			participants = $5,
			bracket = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Discipline, t.StartTime, t.MaxParticipants,
		participants, bracket, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListPendingBracketGeneration(ctx context.Context) ([]*models.Tournament, error) {
	query := selectTournamentBase + ` WHERE bracket = '[]'::jsonb ORDER BY start_time`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments pending bracket generation: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var participants, bracket []byte

	err := row.Scan(
		&t.ID, &t.Name, &t.Discipline, &t.OrganizerID, &t.StartTime, &t.MaxParticipants,
		&participants, &bracket, &t.LogoKey, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(participants, &t.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants for tournament %d: %w", t.ID, err)
	}
	if err := json.Unmarshal(bracket, &t.Bracket); err != nil {
		return nil, fmt.Errorf("failed to decode bracket for tournament %d: %w", t.ID, err)
	}
	return t, nil
}

func marshalAggregate(t *models.Tournament) ([]byte, []byte, error) {
	if t.Participants == nil {
		t.Participants = []models.Participant{}
	}
	if t.Bracket == nil {
		t.Bracket = models.Bracket{}
	}

	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode participants: %w", err)
	}
	bracket, err := json.Marshal(t.Bracket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode bracket: %w", err)
	}
	return participants, bracket, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_organizer_id_name_key" {
			return ErrTournamentNameConflict
		}
	}
	return err
}
