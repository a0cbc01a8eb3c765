//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"batepapo/domain"
	apperrors "batepapo/errors"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const participantPrefix = "participant:"

type IParticipantRepository interface {
	Create(p domain.Participant) error
	GetByName(name string) (domain.Participant, error)
	List() ([]domain.Participant, error)
	Touch(name string, lastStatus int64) error
	DeleteStale(cutoff int64) ([]domain.Participant, error)
}

type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) ParticipantRepository {
	return ParticipantRepository{db: db, log: log}
}

// diskParticipant is the stored representation, kept apart from the
// domain struct so the on-disk format can evolve independently.
type diskParticipant struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

// Create inserts a participant keyed by name. The existence check and
// the insert run inside one Badger update transaction, so two
// interleaved registrations of the same name cannot both commit: the
// transaction is the uniqueness constraint.
func (r ParticipantRepository) Create(p domain.Participant) error {
	data, err := json.Marshal(fromParticipant(p))
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		key := participantKey(p.Name)
		switch _, err := txn.Get(key); {
		case err == nil:
			return apperrors.ErrNameTaken
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
	// A registration overlapping another commit of the same name loses
	// the serializable-snapshot race before its own existence check
	// gets to answer; that loss is still just a duplicate name.
	if errors.Is(err, badger.ErrConflict) {
		return apperrors.ErrNameTaken
	}
	return err
}

func (r ParticipantRepository) GetByName(name string) (domain.Participant, error) {
	var dp diskParticipant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, apperrors.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return toParticipant(dp), nil
}

func (r ParticipantRepository) List() ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(participantPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dp diskParticipant
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dp)
			})
			if err != nil {
				return err
			}
			participants = append(participants, toParticipant(dp))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// Touch refreshes the heartbeat timestamp of a present participant.
func (r ParticipantRepository) Touch(name string, lastStatus int64) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := participantKey(name)
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var dp diskParticipant
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dp)
		}); err != nil {
			return err
		}
		dp.LastStatus = lastStatus
		data, err := json.Marshal(dp)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrParticipantNotFound
	}
	return err
}

// DeleteStale removes every participant whose LastStatus is older than
// cutoff and returns the removed set. The staleness check and the
// delete share one transaction, so a heartbeat committed while a sweep
// is scanning either refreshes the value the sweep reads or conflicts
// the sweep away entirely; a live participant is never evicted on a
// previously cached timestamp.
func (r ParticipantRepository) DeleteStale(cutoff int64) ([]domain.Participant, error) {
	var evicted []domain.Participant
	err := r.db.Update(func(txn *badger.Txn) error {
		evicted = evicted[:0]
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(participantPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dp diskParticipant
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dp)
			})
			if err != nil {
				return err
			}
			if !toParticipant(dp).StaleAt(cutoff) {
				continue
			}
			if err = txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			evicted = append(evicted, toParticipant(dp))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

func fromParticipant(p domain.Participant) diskParticipant {
	return diskParticipant{Name: p.Name, LastStatus: p.LastStatus}
}

func toParticipant(dp diskParticipant) domain.Participant {
	return domain.Participant{Name: dp.Name, LastStatus: dp.LastStatus}
}
