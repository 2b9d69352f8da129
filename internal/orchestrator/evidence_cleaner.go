package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/evidence"
)

// BlobCleaner adapts a Store and an evidence.Store into the
// EvidenceCleaner the Scheduler's evidence_cleanup task drives (spec
// §6.5: completed jobs' screenshots are pruned after
// EVIDENCE_RETENTION_DAYS).
type BlobCleaner struct {
	store Store
	blobs evidence.Store
}

// NewBlobCleaner wires a BlobCleaner's collaborators.
func NewBlobCleaner(store Store, blobs evidence.Store) *BlobCleaner {
	return &BlobCleaner{store: store, blobs: blobs}
}

// CleanupOlderThan deletes the evidence directory of every terminal job
// completed more than age ago, returning the number of jobs swept.
func (c *BlobCleaner) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	ids, err := c.store.CompletedJobIDsBefore(ctx, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("evidence cleanup: list candidates: %w", err)
	}

	swept := 0
	for _, id := range ids {
		if err := c.blobs.DeletePrefix(ctx, evidence.JobPrefix(id)); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}
