// Package gateway admits connections into sessions: it resolves identity
// (anonymous shadow vs. authenticated), proves host authority, and tracks
// channel membership and absence timers.
package gateway

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"sanctuary/auth"
	"sanctuary/domain"
	"sanctuary/errors"

	"github.com/google/uuid"
)

// Credentials is everything a connection may present at admission time.
// All fields are optional; an empty value simply skips that path.
type Credentials struct {
	BearerToken string
	HostToken   string
	HostKey     string
	Alias       string
	AvatarIndex int
}

// Identity is the resolved, immutable identity of one admitted connection.
// It is created once here and passed to every handler; handlers never
// mutate shared connection state field by field.
type Identity struct {
	ParticipantID string
	UserID        string
	Alias         string
	AvatarIndex   int
	IsAnonymous   bool
}

type Gateway struct {
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewGateway(tokens *auth.TokenManager, log *slog.Logger) *Gateway {
	return &Gateway{tokens: tokens, log: log}
}

// Shadow aliases handed to anonymous participants who did not pick one.
var shadowAliases = []string{
	"Willow", "Harbor", "Lantern", "Juniper", "Ember",
	"Meadow", "Quill", "Sparrow", "Cedar", "Wren",
}

// Admit resolves a connection's identity.
//
// A presented bearer token must be valid, otherwise admission fails with an
// auth error. No token at all is always permitted: a shadow identity is
// minted locally and tagged anonymous.
func (g *Gateway) Admit(creds Credentials) (Identity, error) {
	if creds.BearerToken != "" {
		claims, err := g.tokens.Validate(creds.BearerToken)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
		}
		alias := creds.Alias
		if alias == "" {
			alias = claims.Alias
		}
		return Identity{
			ParticipantID: claims.UserID,
			UserID:        claims.UserID,
			Alias:         alias,
			AvatarIndex:   creds.AvatarIndex,
			IsAnonymous:   false,
		}, nil
	}

	alias := creds.Alias
	if alias == "" {
		alias = shadowAliases[rand.Intn(len(shadowAliases))]
	}
	return Identity{
		ParticipantID: uuid.NewString(),
		Alias:         alias,
		AvatarIndex:   creds.AvatarIndex,
		IsAnonymous:   true,
	}, nil
}

// ResolveHost proves host authority for an admitted identity against the
// session record. Three checks run in fixed order; the first success wins:
//
//  1. the presented host token matches the session's host token;
//  2. the authenticated identity matches the session's recorded owner;
//  3. the presented recovery key verifies against the stored hash
//     (the anonymous-host-with-recovery-token case).
//
// If all three fail the caller stays a normal participant; the connection
// is never dropped for a failed host claim.
func (g *Gateway) ResolveHost(session domain.Session, creds Credentials, id Identity) (domain.Role, error) {
	if creds.HostToken != "" && session.HostToken != "" && creds.HostToken == session.HostToken {
		return domain.RoleHost, nil
	}

	if !id.IsAnonymous && session.OwnerID != "" && id.UserID == session.OwnerID {
		return domain.RoleHost, nil
	}

	if creds.HostKey != "" && session.HostKeyHash != "" {
		ok, err := auth.VerifyHostKey(creds.HostKey, session.HostKeyHash)
		if err != nil {
			g.log.Warn("host key verification failed", "session_id", session.ID, "error", err)
		}
		if ok {
			return domain.RoleHost, nil
		}
	}

	return domain.RoleParticipant, errors.ErrNotAuthorizedAsHost
}

// Participant materializes the admitted identity as a session participant.
func (id Identity) Participant(role domain.Role, now time.Time) domain.Participant {
	return domain.Participant{
		ID:          id.ParticipantID,
		Alias:       id.Alias,
		AvatarIndex: id.AvatarIndex,
		Role:        role,
		IsAnonymous: id.IsAnonymous,
		Status:      domain.StatusConnected,
		JoinedAt:    now,
		LastSeenAt:  now,
	}
}
