package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"sanctuary/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IModerationRepository interface {
	Append(event domain.ModerationEvent) error
	Resolve(sessionID domain.SessionID, id uuid.UUID) error
	Unresolved(sessionID domain.SessionID) ([]domain.ModerationEvent, error)
}

// ModerationRepository keeps the append-only audit trail of moderation
// outcomes. Records never change except Resolved, false -> true.
type ModerationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewModerationRepository(db *badger.DB, log *slog.Logger) ModerationRepository {
	return ModerationRepository{db: db, log: log}
}

func moderationKey(sessionID domain.SessionID, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("mod:%s:%s", sessionID, id))
}

func (m ModerationRepository) Append(event domain.ModerationEvent) error {
	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(moderationKey(event.SessionID, event.ID), bytes)
	})
}

// Resolve flips the resolved flag. Any other difference is discarded: the
// stored record stays authoritative.
func (m ModerationRepository) Resolve(sessionID domain.SessionID, id uuid.UUID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(moderationKey(sessionID, id))
		if err != nil {
			return err
		}
		var event domain.ModerationEvent
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &event)
		}); err != nil {
			return err
		}
		if event.Resolved {
			return nil
		}
		event.Resolved = true
		bytes, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return txn.Set(moderationKey(sessionID, id), bytes)
	})
}

// Unresolved lists the events still waiting on human follow-up.
func (m ModerationRepository) Unresolved(sessionID domain.SessionID) ([]domain.ModerationEvent, error) {
	var events []domain.ModerationEvent
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("mod:%s:", sessionID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var event domain.ModerationEvent
				if err := json.Unmarshal(value, &event); err != nil {
					return err
				}
				if !event.Resolved {
					events = append(events, event)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return events, err
}
