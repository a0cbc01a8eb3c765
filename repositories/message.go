//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"batepapo/domain"
	apperrors "batepapo/errors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix = "msg:"
	indexPrefix   = "idx:msg:"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	StoreBatch(ms []domain.Message) error
	GetByID(id uuid.UUID) (domain.Message, error)
	Update(m domain.Message) error
	Delete(id uuid.UUID) error
	ListVisibleTo(user string, limit *int) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository wires the message log. limitMessages, when set,
// caps ListVisibleTo for callers that don't ask for a limit of their own.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Kind string `json:"type"`
	Lang string `json:"lang,omitempty"`
	Time string `json:"time"`
	At   int64  `json:"at"`
}

// Store appends one message to the log.
//
// The primary key is "msg:{creation_nanos_padded}:{uuid}":
//  1. The 19-digit zero padding makes lexicographic order chronological.
//  2. The UUID disambiguates two messages created in the same nanosecond.
//
// A secondary "idx:msg:{uuid}" entry maps the id to the primary key so
// edits and deletes don't have to scan the log. Edits rewrite the value
// in place; the creation instant in the key never changes, so an edited
// message keeps its position.
func (r MessageRepository) Store(m domain.Message) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return storeMessage(txn, m)
	})
}

// StoreBatch writes a batch of messages in a single transaction. Used
// by the sweeper for departure notices.
func (r MessageRepository) StoreBatch(ms []domain.Message) error {
	if len(ms) == 0 {
		return nil
	}
	return r.db.Update(func(txn *badger.Txn) error {
		for _, m := range ms {
			if err := storeMessage(txn, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r MessageRepository) GetByID(id uuid.UUID) (domain.Message, error) {
	var dm diskMessage
	err := r.db.View(func(txn *badger.Txn) error {
		key, err := resolveID(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(dm)
}

// Update rewrites the stored value of an existing message. The caller
// is responsible for authorization and for keeping ID and From intact.
func (r MessageRepository) Update(m domain.Message) error {
	data, err := json.Marshal(fromMessage(m))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		key, err := resolveID(txn, m.ID)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r MessageRepository) Delete(id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key, err := resolveID(txn, id)
		if err != nil {
			return err
		}
		if err = txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
}

// ListVisibleTo walks the log backwards and keeps the messages the
// user may read, so results come out most-recent-first without any
// sort. When limit is set, the walk stops as soon as enough visible
// messages were collected; a nil limit falls back to the configured
// limitMessages default.
func (r MessageRepository) ListVisibleTo(user string, limit *int) ([]domain.Message, error) {
	if limit == nil {
		limit = r.limitMessages
	}
	var visible []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// Seek past the newest possible key, then walk backwards.
		seekKey := append([]byte(messagePrefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(visible) == *limit {
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			})
			if err != nil {
				return err
			}
			m, err := toMessage(dm)
			if err != nil {
				return err
			}
			if m.VisibleTo(user) {
				visible = append(visible, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visible, nil
}

func storeMessage(txn *badger.Txn, m domain.Message) error {
	data, err := json.Marshal(fromMessage(m))
	if err != nil {
		return err
	}
	key := messageKey(m)
	if err = txn.Set(key, data); err != nil {
		return err
	}
	return txn.Set(indexKey(m.ID), key)
}

// resolveID maps a message id to its primary key via the index.
func resolveID(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(indexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, m.At.UnixNano(), m.ID))
}

func indexKey(id uuid.UUID) []byte {
	return []byte(indexPrefix + id.String())
}

func fromMessage(m domain.Message) diskMessage {
	return diskMessage{
		ID:   m.ID.String(),
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Kind: string(m.Kind),
		Lang: m.Lang,
		Time: m.Time,
		At:   m.At.UnixNano(),
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:   parsedID,
		From: dm.From,
		To:   dm.To,
		Text: dm.Text,
		Kind: domain.Kind(dm.Kind),
		Lang: dm.Lang,
		Time: dm.Time,
		At:   time.Unix(0, dm.At).UTC(),
	}, nil
}
