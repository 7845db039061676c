package secretkey

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/config"
	"social-service/internal/domain"
	"social-service/internal/models"
	"social-service/internal/store"
)

// Service issues and redeems ephemeral keys: single-use temp keys backed by
// the store, and per-connection websocket session keys held in memory.
type Service interface {
	GenerateTempKey(ctx context.Context, userID int64, username, userAgent, keyType string, metadata string) (string, error)
	ValidateAndUseTempKey(ctx context.Context, keyValue string, requestingUserID int64) (int64, string, error)
	CleanupExpiredTempKeys(ctx context.Context) (int64, error)

	GenerateWsKey(userID, conversationID int64) string
	ValidateWsKey(keyValue string) (int64, int64, error)
	RemoveWsKey(keyValue string)
	UserWsKeys(userID int64) []string
}

// KeyService is the production implementation. The active-key map is only a
// fast path; the store's partial unique index on unused keys is the
// authority, so two racing generations cannot both insert.
type KeyService struct {
	mgr *store.Manager
	now func() time.Time

	mu         sync.RWMutex
	wsKeys     map[string]*models.WebSocketKey
	activeTemp map[int64]string
}

func NewKeyService(mgr *store.Manager) *KeyService {
	return &KeyService{
		mgr:        mgr,
		now:        time.Now,
		wsKeys:     make(map[string]*models.WebSocketKey),
		activeTemp: make(map[int64]string),
	}
}

// GenerateTempKey derives a new 128-hex-char key for the user and stores it
// with a three minute expiry. A user holds at most one unused key at a time;
// a second request while one is live fails validation.
func (s *KeyService) GenerateTempKey(ctx context.Context, userID int64, username, userAgent, keyType string, metadata string) (string, error) {
	if err := validKeyType(keyType); err != nil {
		return "", err
	}

	s.mu.RLock()
	cachedHash, ok := s.activeTemp[userID]
	s.mu.RUnlock()
	if ok {
		live, err := s.tempKeyLive(ctx, cachedHash)
		if err != nil {
			return "", err
		}
		if live {
			return "", domain.Validation("an active key already exists for this user")
		}
		s.mu.Lock()
		delete(s.activeTemp, userID)
		s.mu.Unlock()
	}

	now := s.now()
	keyValue := deriveTempKey(userID, username, now.UnixMilli(), newNonce(), userAgent)
	keyHash := hashKey(keyValue)
	expiresAt := now.Add(config.TempKeyTTL)

	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		// Clear the user's expired leftovers so the unused-key index only
		// ever rejects a genuinely live key.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM temp_secret_keys WHERE user_id = $1 AND expires_at < NOW()`, userID); err != nil {
			return store.MapError(err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO temp_secret_keys (key_value, key_hash, user_id, key_type, expires_at, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			keyValue, keyHash, userID, keyType, expiresAt, nullString(metadata))
		if err != nil {
			if store.IsUniqueViolation(err) {
				return domain.Validation("an active key already exists for this user")
			}
			return store.MapError(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.activeTemp[userID] = keyHash
	s.mu.Unlock()

	return keyValue, nil
}

// ValidateAndUseTempKey redeems a key exactly once. The row is read under
// FOR UPDATE so two concurrent redeems serialize; the loser sees used=true.
// An expired key is deleted on discovery and reported Gone.
func (s *KeyService) ValidateAndUseTempKey(ctx context.Context, keyValue string, requestingUserID int64) (int64, string, error) {
	keyHash := hashKey(keyValue)

	var (
		ownerID  int64
		metadata string
		expired  bool
	)
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var key models.TempSecretKey
		err := tx.GetContext(ctx, &key,
			`SELECT id, key_value, key_hash, user_id, key_type, used, used_at, expires_at, created_at, metadata
			 FROM temp_secret_keys WHERE key_hash = $1 FOR UPDATE`, keyHash)
		if err != nil {
			return store.MapError(err)
		}

		if s.now().After(key.ExpiresAt) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM temp_secret_keys WHERE id = $1`, key.ID); err != nil {
				return store.MapError(err)
			}
			// Commit the delete; the caller still gets Gone.
			expired = true
			ownerID = key.UserID
			return nil
		}
		if key.Used {
			return domain.Validation("key has already been used")
		}
		if key.UserID != requestingUserID {
			return domain.Validation("key may only be used by its creator")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE temp_secret_keys SET used = TRUE, used_at = NOW() WHERE id = $1`, key.ID); err != nil {
			return store.MapError(err)
		}

		ownerID = key.UserID
		if key.Metadata.Valid {
			metadata = key.Metadata.String
		}
		return nil
	})
	if err != nil {
		return 0, "", err
	}

	s.mu.Lock()
	delete(s.activeTemp, ownerID)
	s.mu.Unlock()

	if expired {
		return 0, "", domain.ErrGone
	}
	return ownerID, metadata, nil
}

// CleanupExpiredTempKeys removes every expired row. Meant for a periodic
// sweeper; redemption already deletes expired keys it trips over.
func (s *KeyService) CleanupExpiredTempKeys(ctx context.Context) (int64, error) {
	res, err := s.mgr.DB().ExecContext(ctx,
		`DELETE FROM temp_secret_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, store.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.MapError(err)
	}
	return n, nil
}

// tempKeyLive checks a cached hash against the store without locking.
func (s *KeyService) tempKeyLive(ctx context.Context, keyHash string) (bool, error) {
	var row struct {
		Used      bool      `db:"used"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := s.mgr.DB().GetContext(ctx, &row,
		`SELECT used, expires_at FROM temp_secret_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, store.MapError(err)
	}
	return !row.Used && !s.now().After(row.ExpiresAt), nil
}

// GenerateWsKey returns the session key for a (user, conversation) pair,
// minting one only if none exists yet.
func (s *KeyService) GenerateWsKey(userID, conversationID int64) string {
	s.mu.RLock()
	for value, info := range s.wsKeys {
		if info.UserID == userID && info.ConversationID == conversationID {
			s.mu.RUnlock()
			return value
		}
	}
	s.mu.RUnlock()

	now := s.now()
	keyValue := deriveWsKey(userID, conversationID, now.UnixMilli(), newNonce())

	s.mu.Lock()
	s.wsKeys[keyValue] = &models.WebSocketKey{
		KeyValue:       keyValue,
		UserID:         userID,
		ConversationID: conversationID,
		ConnectedAt:    now,
		LastActive:     now,
	}
	s.mu.Unlock()

	return keyValue
}

// ValidateWsKey resolves a session key to its user and conversation and
// refreshes its last-active timestamp.
func (s *KeyService) ValidateWsKey(keyValue string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.wsKeys[keyValue]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	info.LastActive = s.now()
	return info.UserID, info.ConversationID, nil
}

// RemoveWsKey drops a session key, typically on disconnect.
func (s *KeyService) RemoveWsKey(keyValue string) {
	s.mu.Lock()
	delete(s.wsKeys, keyValue)
	s.mu.Unlock()
}

// UserWsKeys lists the session keys a user currently holds.
func (s *KeyService) UserWsKeys(userID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for value, info := range s.wsKeys {
		if info.UserID == userID {
			keys = append(keys, value)
		}
	}
	return keys
}

func validKeyType(keyType string) error {
	switch keyType {
	case models.TempKeyFileDownload, models.TempKeyFileUpload, models.TempKeyAPIAccess, models.TempKeyDataExport:
		return nil
	}
	return domain.Validation("unknown key type")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
