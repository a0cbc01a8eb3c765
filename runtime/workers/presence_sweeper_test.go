package workers

import (
	"batepapo/domain"
	"batepapo/repositories"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const absenceTimeout = 10 * time.Second

type sweepFixture struct {
	participants repositories.ParticipantRepository
	messages     repositories.MessageRepository
	sweeper      *PresenceSweeper
	start        time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	participants := repositories.NewParticipantRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	start := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)

	return &sweepFixture{
		participants: participants,
		messages:     messages,
		sweeper:      NewPresenceSweeper(participants, messages, 5*time.Second, absenceTimeout, time.Now, log),
		start:        start,
	}
}

func (f *sweepFixture) join(t *testing.T, name string, lastStatus time.Time) {
	t.Helper()
	err := f.participants.Create(domain.Participant{Name: name, LastStatus: lastStatus.UnixMilli()})
	require.NoError(t, err)
}

func TestPresenceSweeper_EvictsStaleAndWritesDeparture(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	f.join(t, "Alice", f.start)

	sweepAt := f.start.Add(absenceTimeout + time.Second)
	req.NoError(f.sweeper.Sweep(sweepAt))

	_, err := f.participants.GetByName("Alice")
	req.Error(err)

	messages, err := f.messages.ListVisibleTo("anyone", nil)
	req.NoError(err)
	req.Len(messages, 1)
	departure := messages[0]
	req.Equal("Alice", departure.From)
	req.Equal(domain.BroadcastTarget, departure.To)
	req.Equal(domain.KindStatus, departure.Kind)
	req.Equal(domain.LeaveNotice, departure.Text)
	req.Equal(sweepAt.Format(domain.ClockLayout), departure.Time)
}

func TestPresenceSweeper_ExactlyOneDeparturePerEviction(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	f.join(t, "Alice", f.start)

	sweepAt := f.start.Add(absenceTimeout + time.Second)
	req.NoError(f.sweeper.Sweep(sweepAt))
	// A second sweep finds nothing left to evict.
	req.NoError(f.sweeper.Sweep(sweepAt.Add(5 * time.Second)))

	messages, err := f.messages.ListVisibleTo("anyone", nil)
	req.NoError(err)
	req.Len(messages, 1)
}

func TestPresenceSweeper_SparesFreshParticipants(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	f.join(t, "stale", f.start)
	f.join(t, "fresh", f.start.Add(8*time.Second))

	req.NoError(f.sweeper.Sweep(f.start.Add(absenceTimeout + time.Second)))

	remaining, err := f.participants.List()
	req.NoError(err)
	req.Equal([]string{"fresh"}, lo.Map(remaining, func(p domain.Participant, _ int) string {
		return p.Name
	}))
}

func TestPresenceSweeper_HeartbeatBeforeSweepPreventsEviction(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	f.join(t, "Alice", f.start)

	// Heartbeat lands right before the sweep runs.
	sweepAt := f.start.Add(absenceTimeout + time.Second)
	req.NoError(f.participants.Touch("Alice", sweepAt.Add(-time.Second).UnixMilli()))

	req.NoError(f.sweeper.Sweep(sweepAt))

	_, err := f.participants.GetByName("Alice")
	req.NoError(err)

	messages, err := f.messages.ListVisibleTo("anyone", nil)
	req.NoError(err)
	req.Empty(messages)
}

func TestPresenceSweeper_BatchEviction(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	for i := 0; i < 4; i++ {
		f.join(t, fmt.Sprintf("ghost-%d", i), f.start)
	}

	req.NoError(f.sweeper.Sweep(f.start.Add(absenceTimeout + time.Minute)))

	remaining, err := f.participants.List()
	req.NoError(err)
	req.Empty(remaining)

	messages, err := f.messages.ListVisibleTo("anyone", nil)
	req.NoError(err)
	req.Len(messages, 4)
}

func TestPresenceSweeper_ErrorDoesNotStopScheduling(t *testing.T) {
	req := require.New(t)
	f := newSweepFixture(t)

	f.join(t, "Alice", f.start)

	// A failing storage layer makes the cycle error out without
	// touching the scheduling; here we just assert Sweep surfaces it.
	failing := NewPresenceSweeper(failingParticipants{}, f.messages, time.Second, absenceTimeout, time.Now, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.Error(failing.Sweep(f.start.Add(time.Minute)))

	// The healthy sweeper still works afterwards.
	req.NoError(f.sweeper.Sweep(f.start.Add(absenceTimeout + time.Second)))
}

type failingParticipants struct{}

func (failingParticipants) Create(domain.Participant) error { return fmt.Errorf("disk on fire") }
func (failingParticipants) GetByName(string) (domain.Participant, error) {
	return domain.Participant{}, fmt.Errorf("disk on fire")
}
func (failingParticipants) List() ([]domain.Participant, error) {
	return nil, fmt.Errorf("disk on fire")
}
func (failingParticipants) Touch(string, int64) error { return fmt.Errorf("disk on fire") }
func (failingParticipants) DeleteStale(int64) ([]domain.Participant, error) {
	return nil, fmt.Errorf("disk on fire")
}
