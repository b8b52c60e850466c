package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"sanctuary/domain"

	"github.com/dgraph-io/badger/v4"
)

type ISessionRepository interface {
	Upsert(session domain.Session) error
	Get(id domain.SessionID) (domain.Session, bool, error)
	AppendParticipant(id domain.SessionID, view domain.ParticipantView) error
}

// SessionRepository mirrors session records and participant history to disk.
// Writes are best-effort relative to the registry.
type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) SessionRepository {
	return SessionRepository{db: db, log: log}
}

func sessionKey(id domain.SessionID) []byte {
	return []byte(fmt.Sprintf("session:%s", id))
}

func (s SessionRepository) Upsert(session domain.Session) error {
	bytes, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.ID), bytes)
	})
}

func (s SessionRepository) Get(id domain.SessionID) (domain.Session, bool, error) {
	var session domain.Session
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &session)
		})
	})
	return session, found, err
}

// AppendParticipant records a participant sighting under the session, keyed
// by participant so the latest state wins. Kicked participants stay in this
// history even though they are gone from the live set.
func (s SessionRepository) AppendParticipant(id domain.SessionID, view domain.ParticipantView) error {
	key := fmt.Sprintf("session:%s:participant:%s", id, view.ID)
	bytes, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}
