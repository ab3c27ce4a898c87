package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
	apperrors "github.com/promptcrm/backend/pkg/errors"
	"github.com/promptcrm/backend/pkg/utils"
)

// LockStore is the persistence port for schema locks
type LockStore interface {
	Get(ctx context.Context, projectID string) (*schema.SchemaLock, error)
	Insert(ctx context.Context, lock *schema.SchemaLock) error
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeleteOwned(ctx context.Context, projectID, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AcquireResult reports the outcome of a successful acquire
type AcquireResult struct {
	Acquired bool               `json:"lock_acquired"`
	Extended bool               `json:"lock_extended"`
	Lock     *schema.SchemaLock `json:"lock"`
}

// LockStatus is the read-only view of a project's lock
type LockStatus struct {
	Locked bool               `json:"locked"`
	Lock   *schema.SchemaLock `json:"lock,omitempty"`
}

// LockService serializes schema mutation per project. Expiry is lazy: every
// acquire purges stale rows first, so no background sweeper is required for
// correctness (the cron sweep is hygiene only).
type LockService struct {
	store      LockStore
	now        func() time.Time
	defaultTTL int
}

// NewLockService creates a new LockService. SCHEMA_LOCK_TTL_MINUTES overrides
// the default TTL; explicit per-request durations still win.
func NewLockService(store LockStore) *LockService {
	defaultTTL := constants.DefaultLockTTLMinutes
	if v := os.Getenv("SCHEMA_LOCK_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			defaultTTL = n
		}
	}
	return &LockService{store: store, now: time.Now, defaultTTL: defaultTTL}
}

// Acquire takes or extends the project lock for a user. A conflicting
// unexpired lock held by another user returns a LockConflictError carrying
// the holder and expiry; callers must not proceed with mutation.
func (s *LockService) Acquire(ctx context.Context, projectID, userID string, ttlMinutes int) (*AcquireResult, error) {
	ttl := clampTTL(ttlMinutes, s.defaultTTL)
	now := s.now()

	// Lazy expiry: stale locks never block anyone
	if _, err := s.store.DeleteExpired(ctx, now); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if existing != nil && !existing.Expired(now) {
		if existing.UserID != userID {
			return nil, apperrors.NewLockConflictError(projectID, existing.UserID, existing.ExpiresAt)
		}

		// Idempotent re-acquire by the same owner extends in place
		expiresAt := now.Add(ttl)
		if err := s.store.UpdateExpiry(ctx, existing.ID, expiresAt); err != nil {
			return nil, err
		}
		existing.ExpiresAt = expiresAt
		return &AcquireResult{Acquired: true, Extended: true, Lock: existing}, nil
	}

	lock := &schema.SchemaLock{
		ID:        utils.GenerateID(),
		ProjectID: projectID,
		UserID:    userID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.Insert(ctx, lock); err != nil {
		// Two writers can race past the existence check; the uniqueness
		// constraint picks the winner, and the loser reports the winner's
		// conflict instead of a bare SQL error.
		if errors.Is(err, schema.ErrLockExists) {
			winner, gerr := s.store.Get(ctx, projectID)
			if gerr == nil && winner != nil && winner.UserID != userID {
				return nil, apperrors.NewLockConflictError(projectID, winner.UserID, winner.ExpiresAt)
			}
		}
		return nil, err
	}
	return &AcquireResult{Acquired: true, Extended: false, Lock: lock}, nil
}

// Release deletes the lock iff owned by the user. Releasing a lock you don't
// own is a no-op, never an error - that avoids races on expiry.
func (s *LockService) Release(ctx context.Context, projectID, userID string) error {
	return s.store.DeleteOwned(ctx, projectID, userID)
}

// Status reports the current holder and expiry if an unexpired lock exists
func (s *LockService) Status(ctx context.Context, projectID string) (*LockStatus, error) {
	existing, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Expired(s.now()) {
		return &LockStatus{Locked: false}, nil
	}
	return &LockStatus{Locked: true, Lock: existing}, nil
}

// PurgeExpired deletes every expired lock row. Called by the cron sweeper.
func (s *LockService) PurgeExpired(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		log.Printf("⚠️  Failed to purge expired locks: %v", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 Purged %d expired schema lock(s)", n)
	}
}

func clampTTL(minutes, fallback int) time.Duration {
	if minutes <= 0 {
		minutes = fallback
	}
	if minutes < constants.MinLockTTLMinutes {
		minutes = constants.MinLockTTLMinutes
	}
	if minutes > constants.MaxLockTTLMinutes {
		minutes = constants.MaxLockTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}
