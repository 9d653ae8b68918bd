// Package roles keeps the regular and veteran roles in sync with the points
// leaderboard: the top twenty members hold regular, the top five veteran.
package roles

import (
	"context"
	"log/slog"
	"time"

	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/points"
)

// Leaderboard sizes backing each role
const (
	RegularCount = 20
	VeteranCount = 5
)

// Rotator handles the periodic role rotation
type Rotator struct {
	points        *points.Service
	gateway       chat.Gateway
	regularRoleID string
	veteranRoleID string
	interval      time.Duration
}

// NewRotator creates a new role rotation worker
func NewRotator(pointsSvc *points.Service, gateway chat.Gateway, regularRoleID, veteranRoleID string, interval time.Duration) *Rotator {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Rotator{
		points:        pointsSvc,
		gateway:       gateway,
		regularRoleID: regularRoleID,
		veteranRoleID: veteranRoleID,
		interval:      interval,
	}
}

// Start begins the rotation worker in a goroutine
func (r *Rotator) Start(ctx context.Context) {
	go r.run(ctx)
}

// run is the main loop for the rotation worker
func (r *Rotator) run(ctx context.Context) {
	slog.Info("role rotation worker started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.Rotate(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("role rotation worker stopped")
			return
		case <-ticker.C:
			r.Rotate(ctx)
		}
	}
}

// Rotate reassigns both roles from the current leaderboard
func (r *Rotator) Rotate(ctx context.Context) {
	slog.Debug("running role rotation cycle")

	if r.regularRoleID != "" {
		r.rotateRole(ctx, r.regularRoleID, RegularCount)
	}
	if r.veteranRoleID != "" {
		r.rotateRole(ctx, r.veteranRoleID, VeteranCount)
	}
}

// rotateRole makes the role's holders exactly the top n of the leaderboard.
// Holders who fell off lose the role, newcomers gain it, and members already
// in place are left alone.
func (r *Rotator) rotateRole(ctx context.Context, roleID string, n int) {
	top, err := r.points.Leaderboard(ctx, n)
	if err != nil {
		slog.Error("failed to load leaderboard for rotation", "role_id", roleID, "error", err)
		return
	}

	wanted := make(map[string]bool, len(top))
	for _, member := range top {
		wanted[member.UserID] = true
	}

	holders, err := r.gateway.MembersWithRole(ctx, roleID)
	if err != nil {
		slog.Error("failed to list role holders", "role_id", roleID, "error", err)
		return
	}

	current := make(map[string]bool, len(holders))
	for _, userID := range holders {
		current[userID] = true
		if !wanted[userID] {
			if err := r.gateway.RemoveRole(ctx, userID, roleID); err != nil {
				slog.Error("failed to remove role", "user_id", userID, "role_id", roleID, "error", err)
				continue
			}
			slog.Info("role removed", "user_id", userID, "role_id", roleID)
		}
	}

	for userID := range wanted {
		if current[userID] {
			continue
		}
		if err := r.gateway.AddRole(ctx, userID, roleID); err != nil {
			slog.Error("failed to add role", "user_id", userID, "role_id", roleID, "error", err)
			continue
		}
		slog.Info("role added", "user_id", userID, "role_id", roleID)
	}
}
