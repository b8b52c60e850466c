// Package services exposes the coordinator behind a narrow interface so the
// transport layer can be tested against a fake.
package services

import (
	"context"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/gateway"
	"sanctuary/runtime"
)

type ISanctuaryService interface {
	JoinSession(ctx context.Context, sessionID domain.SessionID, creds gateway.Credentials, sink contract.ConnSink) (runtime.JoinResult, error)
	SendMessage(ctx context.Context, sessionID domain.SessionID, senderID, content string, msgType domain.MessageType, replyTo string) error
	RaiseHand(ctx context.Context, sessionID domain.SessionID, participantID string, isRaised bool) error
	Emergency(ctx context.Context, sessionID domain.SessionID, participantID, alertType, message string)
	Mute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error
	Unmute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error
	UnmuteAll(ctx context.Context, sessionID domain.SessionID, actorID string) error
	SelfUnmute(ctx context.Context, sessionID domain.SessionID, participantID string) error
	Promote(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error
	Kick(ctx context.Context, sessionID domain.SessionID, actorID, targetID, reason string) error
	Leave(ctx context.Context, sessionID domain.SessionID, participantID, connID string)
	Snapshot(sessionID domain.SessionID) []domain.ParticipantView
	History(sessionID domain.SessionID, cursor *string) ([]domain.Message, *string, error)
}

// SanctuaryService is the production implementation: a thin pass-through to
// the coordinator.
type SanctuaryService struct {
	coordinator *runtime.Coordinator
}

func NewSanctuaryService(c *runtime.Coordinator) *SanctuaryService {
	return &SanctuaryService{coordinator: c}
}

func (s *SanctuaryService) JoinSession(ctx context.Context, sessionID domain.SessionID, creds gateway.Credentials, sink contract.ConnSink) (runtime.JoinResult, error) {
	return s.coordinator.JoinSession(ctx, sessionID, creds, sink)
}

func (s *SanctuaryService) SendMessage(ctx context.Context, sessionID domain.SessionID, senderID, content string, msgType domain.MessageType, replyTo string) error {
	return s.coordinator.SendMessage(ctx, sessionID, senderID, content, msgType, replyTo)
}

func (s *SanctuaryService) RaiseHand(ctx context.Context, sessionID domain.SessionID, participantID string, isRaised bool) error {
	return s.coordinator.RaiseHand(ctx, sessionID, participantID, isRaised)
}

func (s *SanctuaryService) Emergency(ctx context.Context, sessionID domain.SessionID, participantID, alertType, message string) {
	s.coordinator.Emergency(ctx, sessionID, participantID, alertType, message)
}

func (s *SanctuaryService) Mute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return s.coordinator.Mute(ctx, sessionID, actorID, targetID)
}

func (s *SanctuaryService) Unmute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return s.coordinator.Unmute(ctx, sessionID, actorID, targetID)
}

func (s *SanctuaryService) UnmuteAll(ctx context.Context, sessionID domain.SessionID, actorID string) error {
	return s.coordinator.UnmuteAll(ctx, sessionID, actorID)
}

func (s *SanctuaryService) SelfUnmute(ctx context.Context, sessionID domain.SessionID, participantID string) error {
	return s.coordinator.SelfUnmute(ctx, sessionID, participantID)
}

func (s *SanctuaryService) Promote(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return s.coordinator.Promote(ctx, sessionID, actorID, targetID)
}

func (s *SanctuaryService) Kick(ctx context.Context, sessionID domain.SessionID, actorID, targetID, reason string) error {
	return s.coordinator.Kick(ctx, sessionID, actorID, targetID, reason)
}

func (s *SanctuaryService) Leave(ctx context.Context, sessionID domain.SessionID, participantID, connID string) {
	s.coordinator.Leave(ctx, sessionID, participantID, connID)
}

func (s *SanctuaryService) Snapshot(sessionID domain.SessionID) []domain.ParticipantView {
	return s.coordinator.Snapshot(sessionID)
}

func (s *SanctuaryService) History(sessionID domain.SessionID, cursor *string) ([]domain.Message, *string, error) {
	return s.coordinator.History(sessionID, cursor)
}
