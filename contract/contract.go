package contract

import (
	"context"
	"reflect"

	"sanctuary/domain"
	"sanctuary/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives room events for one consumer (a connection, the disk,
// the operator feed).
type EventSink interface {
	Consume(ctx context.Context, e event.RoomEvent) error
}

// ConnSink is an EventSink bound to a single physical connection. The
// connection identifier is what the router dedups recipients by; a
// participant present in several channels still gets each event once.
type ConnSink interface {
	EventSink
	ConnectionID() string
}

type IRegistry interface {
	Activate(session domain.Session)
	Session(sessionID domain.SessionID) (domain.Session, error)
	Join(sessionID domain.SessionID, p domain.Participant, sink ConnSink) (domain.ParticipantView, error)
	Leave(sessionID domain.SessionID, participantID string) error
	Remove(sessionID domain.SessionID, participantID string) error
	ApplyFlag(sessionID domain.SessionID, participantID string, delta domain.FlagDelta) (domain.Participant, error)
	ApplyFlagAll(sessionID domain.SessionID, delta domain.FlagDelta) ([]string, error)
	Participant(sessionID domain.SessionID, participantID string) (domain.Participant, error)
	ClearSelfMute(sessionID domain.SessionID, participantID string) (domain.Participant, error)
	Snapshot(sessionID domain.SessionID) []domain.ParticipantView
	Role(sessionID domain.SessionID, participantID string) (domain.Role, error)
	SinksFor(sessionID domain.SessionID) []ConnSink
	SinkOf(sessionID domain.SessionID, participantID string) (ConnSink, bool)
	Retire(sessionID domain.SessionID)
}

// Classifier is the single capability interface for remote or local text
// safety classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

type Verdict struct {
	Severity domain.Severity
	Action   domain.ModerationAction
	Topics   []string
}
