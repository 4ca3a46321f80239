package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bracketlab/tournament-engine/brackets"
	"github.com/bracketlab/tournament-engine/locks"
	"github.com/bracketlab/tournament-engine/models"
	"github.com/bracketlab/tournament-engine/repositories"
	"github.com/bracketlab/tournament-engine/scheduler"
	"github.com/bracketlab/tournament-engine/storage"
	"github.com/stretchr/testify/require"
)

// memoryTournamentRepo backs service tests with an in-memory store. Every read
// and write copies the aggregate through JSON, so a caller holding a returned
// tournament cannot mutate the stored one behind the repository's back.
type memoryTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int

	createErr error
	updateErr error
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
	if r.createErr != nil {
		return r.createErr
	}
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
	if r.updateErr != nil {
		return r.updateErr
	}
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

// fakeUploader records uploads instead of talking to object storage.
type fakeUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploads, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listFilterForOrganizer(organizerID int) repositories.ListTournamentsFilter {
	return repositories.ListTournamentsFilter{OrganizerID: &organizerID}
}

type testEnv struct {
	repo        *memoryTournamentRepo
	uploader    *fakeUploader
	sched       *scheduler.Scheduler
	tournaments *TournamentService
	brackets    *BracketService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testDiscardLogger()
	repo := newMemoryTournamentRepo()
	gate := locks.NewKeyedMutex()
	hub := brackets.NewHub(logger)
	sched := scheduler.New(repo, gate, hub, logger)
	t.Cleanup(sched.Shutdown)
	uploader := newFakeUploader()

	return &testEnv{
		repo:        repo,
		uploader:    uploader,
		sched:       sched,
		tournaments: NewTournamentService(repo, gate, sched, uploader, logger),
		brackets:    NewBracketService(repo, gate, sched, hub, logger),
	}
}

// seedTournament inserts a tournament directly into the store, sidestepping
// creation-time validation so tests can set up past start times and the like.
func seedTournament(t *testing.T, env *testEnv, startAt time.Time, capacity, participantCount int) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:            "Spring Masters",
		Discipline:      "table tennis",
		OrganizerID:     1,
		StartTime:       startAt,
		MaxParticipants: capacity,
	}
	for i := 0; i < participantCount; i++ {
		ranking := (participantCount - i) * 10
		tournament.Participants = append(tournament.Participants, models.Participant{
			UserID:        100 + i,
			LicenseNumber: "LIC-" + string(rune('A'+i)),
			Ranking:       &ranking,
			JoinedAt:      time.Now().UTC(),
		})
	}
	require.NoError(t, env.repo.Create(context.Background(), tournament))
	return tournament
}
