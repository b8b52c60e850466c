// Package authority validates and applies privileged host actions against
// the registry. Every action re-checks the actor's current role, so a claim
// that was valid when the socket opened can still be rejected here.
package authority

import (
	"context"
	"log/slog"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/errors"

	"github.com/samber/lo"
)

// Broadcaster is the slice of the router the authority module needs: one
// room broadcast plus a direct event to the affected participant.
type Broadcaster interface {
	Publish(ctx context.Context, e event.RoomEvent) int
	Direct(ctx context.Context, sessionID domain.SessionID, participantID string, e event.RoomEvent) bool
}

// Disconnector force-closes a participant's connection. Implemented by the
// transport layer.
type Disconnector interface {
	Disconnect(sessionID domain.SessionID, participantID string)
}

// Membership removes a connection from the broadcast channels. The kick path
// uses it so a tombstoned participant stops receiving room events the moment
// the flag lands, not when the socket finally closes.
type Membership interface {
	LeaveAll(connID string)
}

type Authority struct {
	registry     contract.IRegistry
	router       Broadcaster
	channels     Membership
	disconnector Disconnector
	kickDelay    time.Duration
	log          *slog.Logger
}

func NewAuthority(registry contract.IRegistry, router Broadcaster, channels Membership,
	disconnector Disconnector, kickDelay time.Duration, log *slog.Logger) *Authority {
	return &Authority{
		registry:     registry,
		router:       router,
		channels:     channels,
		disconnector: disconnector,
		kickDelay:    kickDelay,
		log:          log,
	}
}

// requireAuthority re-validates that the actor still holds host or moderator
// role right now. Roles may have changed since the connection was admitted.
func (a *Authority) requireAuthority(sessionID domain.SessionID, actorID string) error {
	role, err := a.registry.Role(sessionID, actorID)
	if err != nil || !role.Privileged() {
		return errors.ErrAuthorityRevoked
	}
	return nil
}

// Mute sets both IsMuted and HostMuted on the target. While HostMuted holds,
// the target cannot clear its own mute.
func (a *Authority) Mute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	if err := a.requireAuthority(sessionID, actorID); err != nil {
		return err
	}
	if _, err := a.registry.ApplyFlag(sessionID, targetID, domain.FlagDelta{
		IsMuted:   lo.ToPtr(true),
		HostMuted: lo.ToPtr(true),
	}); err != nil {
		return err
	}

	a.router.Publish(ctx, event.ParticipantMuted{Session: sessionID, Participant: targetID, By: actorID})
	a.router.Direct(ctx, sessionID, targetID, event.ForceMuted{Session: sessionID, Participant: targetID})
	return nil
}

// Unmute clears both flags; only this and UnmuteAll release a host mute.
func (a *Authority) Unmute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	if err := a.requireAuthority(sessionID, actorID); err != nil {
		return err
	}
	if _, err := a.registry.ApplyFlag(sessionID, targetID, domain.FlagDelta{
		IsMuted:   lo.ToPtr(false),
		HostMuted: lo.ToPtr(false),
	}); err != nil {
		return err
	}

	a.router.Publish(ctx, event.ParticipantUnmuted{Session: sessionID, Participant: targetID, By: actorID})
	a.router.Direct(ctx, sessionID, targetID, event.ForceUnmuted{Session: sessionID, Participant: targetID})
	return nil
}

// UnmuteAll releases every live participant in one pass.
func (a *Authority) UnmuteAll(ctx context.Context, sessionID domain.SessionID, actorID string) error {
	if err := a.requireAuthority(sessionID, actorID); err != nil {
		return err
	}
	ids, err := a.registry.ApplyFlagAll(sessionID, domain.FlagDelta{
		IsMuted:   lo.ToPtr(false),
		HostMuted: lo.ToPtr(false),
	})
	if err != nil {
		return err
	}

	a.router.Publish(ctx, event.ParticipantsUnmuted{Session: sessionID, By: actorID})
	for _, id := range ids {
		a.router.Direct(ctx, sessionID, id, event.ForceUnmuted{Session: sessionID, Participant: id})
	}
	return nil
}

// SelfUnmute handles a participant unmuting itself. Rejected while
// HostMuted is set; the room never learns of the rejected attempt.
func (a *Authority) SelfUnmute(ctx context.Context, sessionID domain.SessionID, participantID string) error {
	if _, err := a.registry.ClearSelfMute(sessionID, participantID); err != nil {
		return err
	}
	a.router.Publish(ctx, event.ParticipantUnmuted{Session: sessionID, Participant: participantID, By: participantID})
	return nil
}

// Promote elevates the target to moderator. Mute state is deliberately left
// untouched: the host unmutes separately, so promotion never produces an
// instantly live hot mic.
func (a *Authority) Promote(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	if err := a.requireAuthority(sessionID, actorID); err != nil {
		return err
	}
	if _, err := a.registry.ApplyFlag(sessionID, targetID, domain.FlagDelta{Role: lo.ToPtr(domain.RoleModerator)}); err != nil {
		return err
	}

	a.router.Publish(ctx, event.ParticipantPromoted{Session: sessionID, Participant: targetID, Role: domain.RoleModerator, By: actorID})
	return nil
}

// Kick tombstones the target and drops its connection from the broadcast
// channels right away; only the socket close is deferred. The target gets its
// kicked_from_room event while still connected, then the room broadcast goes
// out, then the forced disconnect runs after a short delay so the client can
// render a reason first. The delay is best-effort, not a guarantee.
func (a *Authority) Kick(ctx context.Context, sessionID domain.SessionID, actorID, targetID, reason string) error {
	if err := a.requireAuthority(sessionID, actorID); err != nil {
		return err
	}

	target, err := a.registry.Participant(sessionID, targetID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleHost {
		return errors.ErrAuthorityRevoked
	}

	// Resolve the connection before the tombstone drops the sink binding.
	var connID string
	if s, ok := a.registry.SinkOf(sessionID, targetID); ok {
		connID = s.ConnectionID()
	}

	a.router.Direct(ctx, sessionID, targetID, event.KickedFromRoom{
		Session:     sessionID,
		Participant: targetID,
		Reason:      reason,
	})

	if _, err := a.registry.ApplyFlag(sessionID, targetID, domain.FlagDelta{IsKicked: lo.ToPtr(true)}); err != nil {
		return err
	}
	if connID != "" {
		a.channels.LeaveAll(connID)
	}

	a.router.Publish(ctx, event.ParticipantKicked{Session: sessionID, Participant: targetID})

	if a.disconnector != nil {
		time.AfterFunc(a.kickDelay, func() {
			a.disconnector.Disconnect(sessionID, targetID)
		})
	}
	return nil
}
