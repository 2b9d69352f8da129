// Package evidence persists screenshot blobs captured during job
// execution (spec §3.3, §6.5). It mirrors the pluggable filesystem/GCS
// duality the rest of the storage layer uses elsewhere in the codebase.
package evidence

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound indicates the requested blob does not exist.
var ErrNotFound = errors.New("evidence: object not found")

// Store persists and retrieves screenshot bytes keyed by a job-scoped
// path, and supports bulk removal for retention cleanup (§6.5,
// EVIDENCE_RETENTION_DAYS).
type Store interface {
	// Put writes data under key (conventionally "job_<id>/<name>") and
	// overwrites any existing object at that key.
	Put(ctx context.Context, key string, data []byte, mimeType string) error

	// Get reads the bytes stored at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// DeletePrefix removes every object whose key has the given prefix
	// (used to delete an entire job's evidence directory on cleanup).
	DeletePrefix(ctx context.Context, prefix string) error
}

// JobKey builds the conventional evidence key for a screenshot belonging
// to jobID, named name (spec §6.5: "<EVIDENCE_DIR>/job_<id>/...").
func JobKey(jobID int64, name string) string {
	return JobPrefix(jobID) + "/" + name
}

// JobPrefix returns the directory-like prefix owning all of a job's
// evidence objects.
func JobPrefix(jobID int64) string {
	return "job_" + strconv.FormatInt(jobID, 10)
}
