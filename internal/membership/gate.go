package membership

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"taskhub.dev/internal/obs"
)

// Ownership is consulted after the role check passes. It may load the target
// entity; a load error is returned as is (for example a not-found).
type Ownership func(ctx context.Context, role Role, userID string) (bool, error)

// Gate decides ALLOW or DENY for a user acting inside a project.
type Gate struct {
	members RoleLookup
	log     *slog.Logger
	observe func(action string, allowed bool)
}

// GateOption configures Gate behavior.
type GateOption func(*Gate)

// WithGateLogger sets the logger used for deny diagnostics.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithDecisionObserver receives every decision, e.g. for metrics.
func WithDecisionObserver(fn func(action string, allowed bool)) GateOption {
	return func(g *Gate) {
		g.observe = fn
	}
}

func NewGate(members RoleLookup, opts ...GateOption) *Gate {
	g := &Gate{members: members, log: obs.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize checks membership of userID in projectID against required and,
// when owns is set, the ownership rule. It returns the caller's role on
// ALLOW and ErrUnauthorized on DENY; DENY never says which check failed.
func (g *Gate) Authorize(ctx context.Context, userID, projectID string, required RoleSet, owns Ownership) (Role, error) {
	return g.decide(ctx, "custom", userID, projectID, required, owns)
}

// AuthorizeAction is Authorize with the action's policy as the required set.
func (g *Gate) AuthorizeAction(ctx context.Context, userID, projectID string, action Action, owns Ownership) (Role, error) {
	return g.decide(ctx, action.String(), userID, projectID, action.Required(), owns)
}

func (g *Gate) decide(ctx context.Context, action, userID, projectID string, required RoleSet, owns Ownership) (Role, error) {
	userID = strings.TrimSpace(userID)
	projectID = strings.TrimSpace(projectID)
	if userID == "" || projectID == "" {
		return g.deny(ctx, action, userID, projectID, "missing_scope")
	}
	m, err := g.members.Member(ctx, projectID, userID)
	if errors.Is(err, ErrNotFound) {
		return g.deny(ctx, action, userID, projectID, "not_member")
	}
	if err != nil {
		return RoleUnknown, err
	}
	if !required.Has(m.Role) {
		return g.deny(ctx, action, userID, projectID, "role")
	}
	if owns != nil {
		ok, err := owns(ctx, m.Role, userID)
		if err != nil {
			return RoleUnknown, err
		}
		if !ok {
			return g.deny(ctx, action, userID, projectID, "ownership")
		}
	}
	if g.observe != nil {
		g.observe(action, true)
	}
	return m.Role, nil
}

func (g *Gate) deny(ctx context.Context, action, userID, projectID, reason string) (Role, error) {
	if g.observe != nil {
		g.observe(action, false)
	}
	g.log.DebugContext(ctx, "authorization denied",
		slog.String("action", action),
		slog.String("user_id", userID),
		slog.String("project_id", projectID),
		slog.String("reason", reason),
	)
	return RoleUnknown, ErrUnauthorized
}
