package domain

import "time"

// APIUser is an api_users row (spec §3.5). Included only because the
// lease and metrics tables share the same transactional store; the
// orchestrator core does not own authentication policy (spec §1 Non-goal).
type APIUser struct {
	ID             int64
	Username       string
	HashedPassword string
	Disabled       bool
	LastLogin      *time.Time
}
