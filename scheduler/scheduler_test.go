package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bracketlab/tournament-engine/locks"
	"github.com/bracketlab/tournament-engine/models"
	"github.com/bracketlab/tournament-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTournamentRepo is an in-memory TournamentRepository. Reads and writes
// go through a JSON round-trip so callers never share memory with the store,
// matching the copy semantics of scanning real rows.
type memoryTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int
}

func newMemoryTournamentRepo() *memoryTournamentRepo {
	return &memoryTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	raw, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	clone := &models.Tournament{}
	if err := json.Unmarshal(raw, clone); err != nil {
		panic(err)
	}
	clone.LogoKey = t.LogoKey
	return clone
}

func (r *memoryTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	r.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *memoryTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (r *memoryTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *cloneTournament(t))
	}
	return out, nil
}

func (r *memoryTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *memoryTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func (r *memoryTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *memoryTournamentRepo) ListPendingBracketGeneration(_ context.Context) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if t.Bracket.IsEmpty() {
			out = append(out, cloneTournament(t))
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(repo repositories.TournamentRepository) *Scheduler {
	return New(repo, locks.NewKeyedMutex(), nil, testLogger())
}

func seedTournament(t *testing.T, repo *memoryTournamentRepo, startAt time.Time, participantCount int) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:            "Autumn Open",
		Discipline:      "chess",
		OrganizerID:     1,
		StartTime:       startAt,
		MaxParticipants: 32,
	}
	ranking := 100
	for i := 0; i < participantCount; i++ {
		r := ranking - i*10
		tournament.Participants = append(tournament.Participants, models.Participant{
			UserID:        i + 1,
			LicenseNumber: "LIC-" + string(rune('A'+i)),
			Ranking:       &r,
			JoinedAt:      time.Now(),
		})
	}
	require.NoError(t, repo.Create(context.Background(), tournament))
	return tournament
}

func bracketGenerated(repo *memoryTournamentRepo, id int) func() bool {
	return func() bool {
		t, err := repo.GetByID(context.Background(), id)
		return err == nil && !t.Bracket.IsEmpty()
	}
}

func TestScheduleFiresGeneration(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(20*time.Millisecond), 4)
	sched.Schedule(tournament.ID, tournament.StartTime)

	assert.Eventually(t, bracketGenerated(repo, tournament.ID), 2*time.Second, 10*time.Millisecond)

	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, stored.Bracket, 2, "four participants produce two rounds")
	assert.Len(t, stored.Bracket[0].Matches, 2)
}

func TestScheduleInPastFiresImmediately(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(-time.Hour), 2)
	sched.Schedule(tournament.ID, tournament.StartTime)

	assert.Eventually(t, bracketGenerated(repo, tournament.ID), 2*time.Second, 10*time.Millisecond)
}

func TestCancelPreventsFire(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(60*time.Millisecond), 4)
	sched.Schedule(tournament.ID, tournament.StartTime)
	sched.Cancel(tournament.ID)

	time.Sleep(200 * time.Millisecond)

	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.True(t, stored.Bracket.IsEmpty(), "cancelled timer must not generate")
}

func TestRescheduleReplacesTimer(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(30*time.Millisecond), 4)
	sched.Schedule(tournament.ID, tournament.StartTime)
	// Push the start far out; the original timer must not fire.
	sched.Schedule(tournament.ID, time.Now().Add(time.Hour))

	time.Sleep(200 * time.Millisecond)

	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.True(t, stored.Bracket.IsEmpty())
}

func TestFireSkipsExistingBracket(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(-time.Minute), 4)

	// A manual generation beat the timer.
	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	stored.Bracket = models.Bracket{{RoundNumber: 1, Matches: []models.Match{{}}}}
	require.NoError(t, repo.Update(context.Background(), stored))

	sched.Schedule(tournament.ID, tournament.StartTime)
	time.Sleep(100 * time.Millisecond)

	after, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Bracket, after.Bracket, "existing bracket must be left alone")
}

func TestFireSkipsUnderfilledTournament(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	tournament := seedTournament(t, repo, time.Now().Add(-time.Minute), 1)
	sched.Schedule(tournament.ID, tournament.StartTime)

	time.Sleep(100 * time.Millisecond)

	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.True(t, stored.Bracket.IsEmpty(), "one participant is not enough to generate")
}

func TestRecoverPending(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)
	defer sched.Shutdown()

	overdue := seedTournament(t, repo, time.Now().Add(-time.Hour), 4)
	upcoming := seedTournament(t, repo, time.Now().Add(time.Hour), 4)

	// Already generated: must not be touched or counted.
	generated := seedTournament(t, repo, time.Now().Add(-time.Hour), 4)
	stored, err := repo.GetByID(context.Background(), generated.ID)
	require.NoError(t, err)
	stored.Bracket = models.Bracket{{RoundNumber: 1, Matches: []models.Match{{}}}}
	require.NoError(t, repo.Update(context.Background(), stored))

	count, err := sched.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Eventually(t, bracketGenerated(repo, overdue.ID), 2*time.Second, 10*time.Millisecond,
		"overdue tournament fires right after recovery")

	future, err := repo.GetByID(context.Background(), upcoming.ID)
	require.NoError(t, err)
	assert.True(t, future.Bracket.IsEmpty(), "future tournament waits for its start time")
}

func TestShutdownStopsTimersAndScheduling(t *testing.T) {
	repo := newMemoryTournamentRepo()
	sched := newTestScheduler(repo)

	tournament := seedTournament(t, repo, time.Now().Add(50*time.Millisecond), 4)
	sched.Schedule(tournament.ID, tournament.StartTime)
	sched.Shutdown()

	// Scheduling after shutdown is a no-op.
	sched.Schedule(tournament.ID, time.Now().Add(10*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	stored, err := repo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.True(t, stored.Bracket.IsEmpty())
}
