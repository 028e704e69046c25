// Package access decides which Telegram users may talk to the bridge.
package access

import (
	"slices"

	"github.com/memohai/immich-bridge/internal/config"
)

// Gate is a static allow-list of Telegram user ids.
type Gate struct {
	users []int64
}

// NewGate copies ids so later changes to the caller's slice have no effect.
func NewGate(ids []int64) *Gate {
	return &Gate{users: slices.Clone(ids)}
}

// NewGateFromConfig builds a gate from the configured allow-list.
func NewGateFromConfig(cfg config.Config) *Gate {
	return NewGate(cfg.Telegram.AllowedUserIDs)
}

// Allowed reports whether userID may use the bot. An empty list admits
// everyone; a nil gate admits no one.
func (g *Gate) Allowed(userID int64) bool {
	if g == nil {
		return false
	}
	if len(g.users) == 0 {
		return true
	}
	return slices.Contains(g.users, userID)
}

// Users returns the allow-list.
func (g *Gate) Users() []int64 {
	if g == nil {
		return nil
	}
	return slices.Clone(g.users)
}
