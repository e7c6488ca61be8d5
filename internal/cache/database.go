package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore implements Store on the cache_entries table so state holds
// across several API instances sharing one database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// mutate loads key under a row lock and hands it to fn. found is false when
// the row is missing or expired; fn then starts from a blank entry. fn returns
// false to leave the row untouched.
func (s *DatabaseStore) mutate(ctx context.Context, key string, fn func(entry *models.CacheEntry, found bool) bool) error {
	if s == nil {
		return errStoreNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&entry, "key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.CacheEntry{Key: key}
			if !fn(&entry, false) {
				return nil
			}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		live := !entry.Expired(now)
		if !live {
			entry.Value = nil
		}
		if !fn(&entry, live) {
			return nil
		}
		return tx.Save(&entry).Error
	})
}

// IncrementWithTTL returns the hit count and the time left in the window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	var (
		count  int64
		expiry time.Time
	)
	err := s.mutate(ctx, key, func(entry *models.CacheEntry, found bool) bool {
		if found {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = current + 1
		} else {
			count = 1
			entry.ExpiresAt = s.now().Add(window)
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))
		expiry = entry.ExpiresAt
		return true
	})
	if err != nil {
		return 0, 0, err
	}
	return count, expiry.Sub(s.now()), nil
}

// Claim records owner against key unless a live claim by someone else exists.
// Claiming again as the same owner succeeds without extending the lease.
func (s *DatabaseStore) Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("cache: claim requires a positive ttl")
	}

	var granted bool
	err := s.mutate(ctx, key, func(entry *models.CacheEntry, found bool) bool {
		if found {
			granted = string(entry.Value) == owner
			return false
		}
		granted = true
		entry.Value = []byte(owner)
		entry.ExpiresAt = s.now().Add(ttl)
		return true
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// CleanupExpired deletes entries whose expiry has passed.
func (s *DatabaseStore) CleanupExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}
