// Package authz resolves the ownership chain of farm resources.
//
// Farm actions are owner-only: a plot belongs to its user, a cycle to its
// plot's user, an activity to its cycle's plot's user. An absent resource and
// a resource owned by someone else both yield the same Unauthorized error, so
// callers cannot learn which ids exist.
package authz

import (
	"context"
	"errors"

	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/repository"
)

// Principal is the caller identity passed into every operation.
type Principal struct {
	UserID string
	Role   domain.Role
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Authenticated() && p.Role == domain.RoleAdmin
}

// Authorize allows the call when the caller owns the resource, or, for admin
// actions (requiredRole set), holds that role. ownerID is ignored for role
// checks.
func Authorize(p Principal, ownerID string, requiredRole domain.Role) error {
	if !p.Authenticated() {
		return apperrors.ErrUnauthorized()
	}
	if requiredRole != "" {
		if p.Role != requiredRole {
			return apperrors.ErrUnauthorized()
		}
		return nil
	}
	if ownerID == "" || p.UserID != ownerID {
		return apperrors.ErrUnauthorized()
	}
	return nil
}

// RequireAuthenticated fails for an empty principal.
func RequireAuthenticated(p Principal) error {
	return Authorize(p, p.UserID, "")
}

// RequireAdmin fails unless the principal is an admin.
func RequireAdmin(p Principal) error {
	return Authorize(p, "", domain.RoleAdmin)
}

// Lookup is the slice of the store the guard needs.
type Lookup interface {
	GetPlot(ctx context.Context, id string) (*domain.Plot, error)
	GetCycle(ctx context.Context, id string) (*domain.PlantingCycle, error)
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
}

// Guard walks activity -> cycle -> plot -> user and checks the caller.
type Guard struct {
	store Lookup
}

// NewGuard creates a guard reading from store.
func NewGuard(store Lookup) *Guard {
	return &Guard{store: store}
}

// With returns a guard that reads from store, e.g. a transaction.
func (g *Guard) With(store Lookup) *Guard {
	return &Guard{store: store}
}

// Plot returns the plot when the caller owns it.
func (g *Guard) Plot(ctx context.Context, p Principal, plotID string) (*domain.Plot, error) {
	if err := RequireAuthenticated(p); err != nil {
		return nil, err
	}
	plot, err := g.store.GetPlot(ctx, plotID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if err := Authorize(p, plot.UserID, ""); err != nil {
		return nil, err
	}
	return plot, nil
}

// Cycle returns the cycle and its plot when the caller owns the plot.
func (g *Guard) Cycle(ctx context.Context, p Principal, cycleID string) (*domain.PlantingCycle, *domain.Plot, error) {
	if err := RequireAuthenticated(p); err != nil {
		return nil, nil, err
	}
	cycle, err := g.store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, nil, lookupErr(err)
	}
	plot, err := g.Plot(ctx, p, cycle.PlotID)
	if err != nil {
		return nil, nil, err
	}
	return cycle, plot, nil
}

// Activity returns the activity and its cycle when the caller owns the chain.
func (g *Guard) Activity(ctx context.Context, p Principal, activityID string) (*domain.Activity, *domain.PlantingCycle, error) {
	if err := RequireAuthenticated(p); err != nil {
		return nil, nil, err
	}
	activity, err := g.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, nil, lookupErr(err)
	}
	cycle, _, err := g.Cycle(ctx, p, activity.CycleID)
	if err != nil {
		return nil, nil, err
	}
	return activity, cycle, nil
}

func lookupErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrUnauthorized()
	}
	return apperrors.ErrInternal(err)
}
