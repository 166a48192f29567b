// Package tokenstore keeps the bearer token pair, the cached user profile and
// a few UI flags in the local database so they survive restarts. Values are
// optionally sealed at rest with a passphrase-derived key.
package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/innerwell/internal/common"
	"github.com/dmitrijs2005/innerwell/internal/cryptox"
	"github.com/dmitrijs2005/innerwell/internal/dbx"
)

// ErrSealed is returned when a stored value cannot be unsealed, usually
// because the passphrase differs from the one the store was created with.
var ErrSealed = errors.New("stored value cannot be unsealed")

// Store is safe for concurrent use; serialisation is left to the database.
type Store struct {
	db   *sql.DB
	repo metadata.Repository
	key  []byte
	now  func() time.Time
}

// New opens a store over db. With a non-empty passphrase every value is
// sealed; the salt and a key verifier are created on first use.
func New(ctx context.Context, db *sql.DB, repo metadata.Repository, passphrase string) (*Store, error) {
	s := &Store{db: db, repo: repo, now: time.Now}
	if passphrase == "" {
		return s, nil
	}

	salt, err := repo.Get(ctx, common.StorageKeySalt)
	if err != nil {
		return nil, err
	}
	if salt == nil {
		salt = cryptox.NewSalt()
		if err := repo.Set(ctx, common.StorageKeySalt, salt); err != nil {
			return nil, err
		}
	}

	key := cryptox.DeriveKey([]byte(passphrase), salt)

	verifier, err := repo.Get(ctx, common.StorageKeyVerifier)
	if err != nil {
		return nil, err
	}
	switch {
	case verifier == nil:
		if err := repo.Set(ctx, common.StorageKeyVerifier, cryptox.MakeVerifier(key)); err != nil {
			return nil, err
		}
	case !cryptox.CheckVerifier(key, verifier):
		common.WipeByteArray(key)
		return nil, fmt.Errorf("wrong store passphrase: %w", ErrSealed)
	}

	s.key = key
	return s, nil
}

// Sealed reports whether values are encrypted at rest.
func (s *Store) Sealed() bool { return s.key != nil }

// Close wipes key material held in memory.
func (s *Store) Close() {
	common.WipeByteArray(s.key)
	s.key = nil
}

// Get returns the stored pair. Missing values are empty strings, which
// callers treat as "not authenticated".
func (s *Store) Get(ctx context.Context) (models.Tokens, error) {
	access, err := s.getString(ctx, s.repo, common.StorageKeyAccess)
	if err != nil {
		return models.Tokens{}, err
	}
	refresh, err := s.getString(ctx, s.repo, common.StorageKeyRefresh)
	if err != nil {
		return models.Tokens{}, err
	}
	return models.Tokens{Access: access, Refresh: refresh}, nil
}

// AccessToken returns the stored access token or "".
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.getString(ctx, s.repo, common.StorageKeyAccess)
}

// RefreshToken returns the stored refresh token or "".
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.getString(ctx, s.repo, common.StorageKeyRefresh)
}

// Set overwrites both tokens in one transaction and records when they were
// issued.
func (s *Store) Set(ctx context.Context, access, refresh string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo.WithDB(tx)
		if err := s.put(ctx, repo, common.StorageKeyAccess, []byte(access)); err != nil {
			return err
		}
		if err := s.put(ctx, repo, common.StorageKeyRefresh, []byte(refresh)); err != nil {
			return err
		}
		ts := strconv.FormatInt(s.now().UnixMilli(), 10)
		return s.put(ctx, repo, common.StorageKeyTokenTimestamp, []byte(ts))
	})
}

// Remove clears both tokens and the cached profile.
func (s *Store) Remove(ctx context.Context) error {
	return s.repo.Delete(ctx,
		common.StorageKeyAccess,
		common.StorageKeyRefresh,
		common.StorageKeyUser,
		common.StorageKeyTokenTimestamp,
	)
}

// IssuedAt returns when Set last stored a pair; zero if never.
func (s *Store) IssuedAt(ctx context.Context) (time.Time, error) {
	v, err := s.getString(ctx, s.repo, common.StorageKeyTokenTimestamp)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s value %q: %w", common.StorageKeyTokenTimestamp, v, err)
	}
	return time.UnixMilli(ms), nil
}

// User returns the cached profile, or nil when none is stored.
func (s *Store) User(ctx context.Context) (*models.User, error) {
	raw, err := s.get(ctx, s.repo, common.StorageKeyUser)
	if err != nil || raw == nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

// SetUser caches u; nil removes the cached profile.
func (s *Store) SetUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return s.repo.Delete(ctx, common.StorageKeyUser)
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.put(ctx, s.repo, common.StorageKeyUser, raw)
}

// HistoryConsent reports whether the user agreed to keep chat history.
func (s *Store) HistoryConsent(ctx context.Context) (bool, error) {
	v, err := s.getString(ctx, s.repo, common.StorageKeyChatHistory)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *Store) SetHistoryConsent(ctx context.Context, allow bool) error {
	return s.put(ctx, s.repo, common.StorageKeyChatHistory, []byte(strconv.FormatBool(allow)))
}

// LastChallengeSession returns the id of the last internal-challenge session.
func (s *Store) LastChallengeSession(ctx context.Context) (models.SessionID, error) {
	v, err := s.getString(ctx, s.repo, common.StorageKeyChatSession)
	return models.SessionID(v), err
}

func (s *Store) SetLastChallengeSession(ctx context.Context, id models.SessionID) error {
	if id == "" {
		return s.repo.Delete(ctx, common.StorageKeyChatSession)
	}
	return s.put(ctx, s.repo, common.StorageKeyChatSession, []byte(id))
}

func (s *Store) put(ctx context.Context, repo metadata.Repository, key string, value []byte) error {
	if s.key != nil {
		sealed, err := cryptox.Seal(s.key, value)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		value = sealed
	}
	return repo.Set(ctx, key, value)
}

func (s *Store) get(ctx context.Context, repo metadata.Repository, key string) ([]byte, error) {
	value, err := repo.Get(ctx, key)
	if err != nil || value == nil || s.key == nil {
		return value, err
	}
	plain, err := cryptox.Open(s.key, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, ErrSealed)
	}
	return plain, nil
}

func (s *Store) getString(ctx context.Context, repo metadata.Repository, key string) (string, error) {
	v, err := s.get(ctx, repo, key)
	return string(v), err
}
