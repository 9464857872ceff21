// Package upload orchestrates a single file's journey from disk to the
// remote backend: parse, digest, dedup check, insert, and — on failure —
// handoff to the retry queue.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pgfx-sync/agent/internal/queue"
	"github.com/pgfx-sync/agent/internal/remote"
	"github.com/pgfx-sync/agent/internal/session"
)

// Uploader performs the parse-digest-dedup-insert procedure for one file at
// a time. It holds no per-path state; callers (the debounced event handler,
// the retry loop) decide which file to upload and when.
type Uploader struct {
	remote *remote.Client
	queue  *queue.Queue
	logger *zap.Logger
}

// New builds an Uploader over the given remote client and retry queue.
func New(remoteClient *remote.Client, q *queue.Queue, logger *zap.Logger) *Uploader {
	return &Uploader{remote: remoteClient, queue: q, logger: logger}
}

// Result describes the outcome of a single upload attempt. Neither Upload
// nor Attempt raises a Go error across its boundary: every exceptional
// path — a read failure, a parse failure, a remote error — is folded into
// a Result with Success false.
type Result struct {
	Success      bool
	Dedup        bool
	SessionID    string
	HandCount    int
	ErrorMessage string
	Queued       bool
}

// Upload is the entry point for a freshly debounced file event: it runs
// Attempt and, on any failure, enqueues (path, kind) into the retry queue
// so the retry loop can reattempt it later. kind is the watcher event kind
// that triggered this attempt (created/modified/existing) — it is recorded
// for audit only; the retry itself always re-reads and re-parses path from
// scratch, so a read error, a parse error, and a remote error all enqueue
// identically.
func (u *Uploader) Upload(ctx context.Context, path, kind string) Result {
	res := u.Attempt(ctx, path)
	if res.Success {
		return res
	}
	return u.enqueueFailure(ctx, path, kind, res.ErrorMessage)
}

// Attempt reads path, computes its content digest, and either finds it
// already present remotely (Dedup), or inserts it (Success). It does not
// touch the retry queue — the retry loop calls Attempt directly against an
// item already on the queue and manages that item's retry bookkeeping
// itself, so Attempt never enqueues a second row for the same failure.
func (u *Uploader) Attempt(ctx context.Context, path string) Result {
	if u.logger != nil {
		u.logger.Info("sync-start", zap.String("path", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{ErrorMessage: fmt.Errorf("reading %s: %w", path, err).Error()}
	}

	rec, err := session.Parse(data)
	if err != nil {
		return Result{ErrorMessage: fmt.Errorf("parsing %s: %w", path, err).Error()}
	}

	digest := contentDigest(data)

	found, err := u.remote.FindByDigest(ctx, digest)
	if err != nil {
		return Result{ErrorMessage: fmt.Errorf("checking digest of %s: %w", path, err).Error()}
	}
	if found {
		if u.logger != nil {
			u.logger.Info("dedup-skip",
				zap.String("path", path), zap.String("digest", digest),
				zap.String("session_id", rec.ID), zap.Int("hand_count", rec.HandCount))
		}
		return Result{Success: true, Dedup: true, SessionID: rec.ID, HandCount: rec.HandCount}
	}

	row := remote.Row{
		FileHash:           digest,
		ID:                 rec.ID,
		Type:               rec.Type,
		EventTitle:         rec.EventTitle,
		SoftwareVersion:    rec.SoftwareVersion,
		CreatedDateTimeUTC: rec.CreatedDateTimeUTC,
		HandCount:          rec.HandCount,
		Payload:            rec.RawJSON,
	}

	if err := u.remote.Insert(ctx, row); err != nil {
		return Result{ErrorMessage: fmt.Errorf("inserting %s: %w", path, err).Error()}
	}

	if u.logger != nil {
		u.logger.Info("sync-success",
			zap.String("path", path), zap.String("digest", digest),
			zap.String("session_id", rec.ID), zap.Int("hand_count", rec.HandCount))
	}
	return Result{Success: true, SessionID: rec.ID, HandCount: rec.HandCount}
}

// enqueueFailure records cause against the retry queue under operation
// kind and folds the outcome into a Result. If the queue itself can't be
// written to, that second failure is logged but not propagated — the
// caller still gets a plain Result back, per the Uploader's no-raise
// contract.
func (u *Uploader) enqueueFailure(ctx context.Context, path, kind, cause string) Result {
	qid, qerr := u.queue.Enqueue(ctx, path, kind)
	if qerr != nil {
		if u.logger != nil {
			u.logger.Error("sync-fail, enqueue also failed",
				zap.String("path", path), zap.String("operation", kind),
				zap.String("cause", cause), zap.Error(qerr))
		}
		return Result{ErrorMessage: fmt.Sprintf("upload failed (%s) and enqueue failed (%s)", cause, qerr)}
	}

	if u.logger != nil {
		u.logger.Warn("sync-fail, queued for retry",
			zap.String("path", path), zap.String("operation", kind),
			zap.Int64("queue_id", qid), zap.String("cause", cause))
	}
	return Result{ErrorMessage: cause, Queued: true}
}

// contentDigest returns the hex-encoded SHA-256 digest of data, the dedup
// key shared between the client-side pre-check and the server's unique
// constraint.
func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
