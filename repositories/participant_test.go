package repositories

import (
	apperrors "batepapo/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"batepapo/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func TestParticipantRepository_CreateThenConflict(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	alice := domain.Participant{Name: "Alice", LastStatus: time.Now().UnixMilli()}
	req.NoError(repository.Create(alice))

	err := repository.Create(alice)
	req.ErrorIs(err, apperrors.ErrNameTaken)

	fetched, err := repository.GetByName("Alice")
	req.NoError(err)
	req.Equal(alice, fetched)
}

func TestParticipantRepository_Create_ConcurrentSameName(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	// Overlapping registrations of one name: whichever transaction
	// loses the commit race must still surface as a duplicate name,
	// never as a raw storage conflict.
	const registrations = 16
	results := make(chan error, registrations)
	var wg sync.WaitGroup
	for i := 0; i < registrations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repository.Create(domain.Participant{Name: "Alice", LastStatus: 100})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		req.ErrorIs(err, apperrors.ErrNameTaken)
	}
	req.Equal(1, succeeded)
}

func TestParticipantRepository_NamesAreCaseSensitive(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	req.NoError(repository.Create(domain.Participant{Name: "alice", LastStatus: 1}))
	req.NoError(repository.Create(domain.Participant{Name: "Alice", LastStatus: 2}))

	participants, err := repository.List()
	req.NoError(err)
	req.Len(participants, 2)
}

func TestParticipantRepository_GetByName_NotFound(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	_, err := repository.GetByName("ghost")
	req.ErrorIs(err, apperrors.ErrParticipantNotFound)
}

func TestParticipantRepository_Touch(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	req.NoError(repository.Create(domain.Participant{Name: "Alice", LastStatus: 100}))
	req.NoError(repository.Touch("Alice", 500))

	fetched, err := repository.GetByName("Alice")
	req.NoError(err)
	req.Equal(int64(500), fetched.LastStatus)

	req.ErrorIs(repository.Touch("Bob", 500), apperrors.ErrParticipantNotFound)
}

func TestParticipantRepository_DeleteStale_EvictsOnlyStale(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	req.NoError(repository.Create(domain.Participant{Name: "stale", LastStatus: 100}))
	req.NoError(repository.Create(domain.Participant{Name: "fresh", LastStatus: 900}))

	evicted, err := repository.DeleteStale(500)
	req.NoError(err)
	req.Len(evicted, 1)
	req.Equal("stale", evicted[0].Name)

	participants, err := repository.List()
	req.NoError(err)
	req.Len(participants, 1)
	req.Equal("fresh", participants[0].Name)
}

func TestParticipantRepository_DeleteStale_HeartbeatWinsTheRace(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openTestDB(t), testLogger())

	req.NoError(repository.Create(domain.Participant{Name: "Alice", LastStatus: 100}))

	// Heartbeat lands before the sweep commits its delete: the sweep
	// re-reads LastStatus inside its own transaction and must skip.
	req.NoError(repository.Touch("Alice", 600))

	evicted, err := repository.DeleteStale(500)
	req.NoError(err)
	req.Empty(evicted)

	_, err = repository.GetByName("Alice")
	req.NoError(err)
}
