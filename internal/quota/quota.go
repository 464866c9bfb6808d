// Package quota decides whether prospective writes fit a user's storage
// allowance. Usage is recomputed from the live file listing on every check;
// the per-user lock lets callers make the check-then-write pair on upload
// atomic, so concurrent uploads cannot both squeeze past the limit.
package quota

import (
	"errors"
	"sync"

	"github.com/cloudvault/backend/internal/filestore"
	"github.com/cloudvault/backend/internal/models"
	"github.com/google/uuid"
)

// MaxFileBytes caps a single file at 5 GiB, independent of remaining quota.
const MaxFileBytes int64 = 5 << 30

var (
	ErrFileTooLarge  = errors.New("file exceeds the per-file size limit")
	ErrQuotaExceeded = errors.New("upload exceeds the storage quota")
)

type Accountant struct {
	Store *filestore.Store

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewAccountant(store *filestore.Store) *Accountant {
	return &Accountant{
		Store: store,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Lock serializes quota-relevant writes for one user and returns the unlock
// function. Callers hold it across the CanAccept check and the store write.
func (a *Accountant) Lock(userID uuid.UUID) func() {
	a.mu.Lock()
	lock, ok := a.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[userID] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Usage reports the user's consumed bytes from the current file listing.
func (a *Accountant) Usage(userID uuid.UUID) (int64, error) {
	return a.Store.Usage(userID.String())
}

// Check validates an incoming write of the given total size. The limit is
// inclusive: a write landing exactly on the quota boundary is accepted.
func (a *Accountant) Check(user *models.User, incomingBytes int64) error {
	if incomingBytes > MaxFileBytes {
		return ErrFileTooLarge
	}

	consumed, err := a.Usage(user.ID)
	if err != nil {
		return err
	}

	if consumed+incomingBytes > user.QuotaBytes() {
		return ErrQuotaExceeded
	}
	return nil
}

// CanAccept is the boolean form of Check for callers that only need the
// aggregate-quota decision.
func (a *Accountant) CanAccept(user *models.User, incomingBytes int64) (bool, error) {
	consumed, err := a.Usage(user.ID)
	if err != nil {
		return false, err
	}
	return consumed+incomingBytes <= user.QuotaBytes(), nil
}
