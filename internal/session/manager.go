// Package session issues and resolves persisted bearer sessions.
//
// Every credential handed to a client is backed by a user_tokens row. A
// credential resolves only while its row is active and not past valid_till.
// Rows are never removed; they are deactivated on expiry, logout or when the
// owner exceeds the active session cap.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"krafti/internal/credential"
	"krafti/internal/metrics"
	"krafti/internal/models"
)

// lockClass namespaces the per-owner advisory locks taken while issuing.
const lockClass int64 = 0x6b726166

// Options configures a Manager.
type Options struct {
	// TTL is the lifetime of a new credential.
	TTL time.Duration

	// MaxActive bounds the active sessions of one owner.
	MaxActive int

	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	db      *gorm.DB
	codec   *credential.Codec
	ttl     time.Duration
	max     int
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewManager returns a Manager storing sessions in db.
func NewManager(db *gorm.DB, codec *credential.Codec, opts Options) *Manager {
	m := &Manager{
		db:      db,
		codec:   codec,
		ttl:     opts.TTL,
		max:     opts.MaxActive,
		metrics: opts.Metrics,
		log:     log.Logger,
	}
	if opts.Logger != nil {
		m.log = *opts.Logger
	}
	if m.max < 1 {
		m.max = 1
	}
	return m
}

// Issue returns a credential for ownerID and records it with origin.
//
// Within one transaction, and under a per-owner lock, Issue deactivates the
// owner's expired sessions, reuses a session already created in the same
// second or creates a new one, and then deactivates the oldest active
// sessions until at most MaxActive remain.
func (m *Manager) Issue(ctx context.Context, ownerID uint, origin string, now time.Time) (string, error) {
	now = now.UTC().Truncate(time.Second)

	var (
		token   string
		reused  bool
		expired int64
		evicted int64
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, ownerID); err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}

		res := tx.Model(&models.UserToken{}).
			Where("user_id = ? AND active = ? AND valid_till < ?", ownerID, true, now).
			Updates(map[string]any{"active": false, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("expire sessions: %w", res.Error)
		}
		expired = res.RowsAffected

		var same []models.UserToken
		if err := tx.Where("user_id = ? AND active = ? AND created_at = ?", ownerID, true, now).
			Order("id ASC").Limit(1).Find(&same).Error; err != nil {
			return fmt.Errorf("find same-second session: %w", err)
		}

		var current models.UserToken
		if len(same) > 0 {
			current = same[0]
			reused = true
		} else {
			signed, err := m.codec.Encode(credential.Claims{
				SubjectID: uint64(ownerID),
				IssuedAt:  now,
				ExpiresAt: now.Add(m.ttl),
			})
			if err != nil {
				return err
			}
			current = models.UserToken{
				UserID:    ownerID,
				Token:     signed,
				ValidTill: now.Add(m.ttl),
				IP:        origin,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&current).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
		}
		token = current.Token

		n, err := m.enforceCap(tx, ownerID, current.ID, now)
		if err != nil {
			return err
		}
		evicted = n
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("issue session for user %d: %w", ownerID, err)
	}

	m.metrics.Session("expired", int(expired))
	m.metrics.Session("evicted", int(evicted))
	if reused {
		m.metrics.Session("reused", 1)
	} else {
		m.metrics.Session("issued", 1)
	}
	m.log.Debug().
		Uint("user_id", ownerID).
		Bool("reused", reused).
		Int64("expired", expired).
		Int64("evicted", evicted).
		Msg("session issued")
	return token, nil
}

// enforceCap deactivates the owner's oldest active sessions other than keep
// while more than m.max are active.
func (m *Manager) enforceCap(tx *gorm.DB, ownerID, keep uint, now time.Time) (int64, error) {
	var count int64
	if err := tx.Model(&models.UserToken{}).
		Where("user_id = ? AND active = ?", ownerID, true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	excess := count - int64(m.max)
	if excess <= 0 {
		return 0, nil
	}

	var ids []uint
	if err := tx.Model(&models.UserToken{}).
		Where("user_id = ? AND active = ? AND id <> ?", ownerID, true, keep).
		Order("updated_at ASC").Order("created_at ASC").Order("id ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("select evicted sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := tx.Model(&models.UserToken{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"active": false, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("evict sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// lockOwner serializes Issue per owner on PostgreSQL. Other dialects are used
// with a single writer connection and need no lock.
func lockOwner(tx *gorm.DB, ownerID uint) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	key := lockClass<<32 | int64(uint32(ownerID))
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error
}

// Resolve returns the owner of token when it is backed by an active,
// unexpired session. Invalid, unknown and expired credentials all resolve
// to ok=false with a nil error; err is reserved for store failures.
// An expired session is deactivated as a side effect.
func (m *Manager) Resolve(ctx context.Context, token string, now time.Time) (uint, bool, error) {
	ownerID, err := m.lookup(ctx, token, now)
	switch {
	case err == nil:
		m.metrics.Resolve("ok")
		return ownerID, true, nil
	case errors.Is(err, credential.ErrMalformed), errors.Is(err, credential.ErrSignatureInvalid):
		m.metrics.Resolve("invalid")
	case errors.Is(err, ErrSessionNotFound):
		m.metrics.Resolve("unknown")
	case errors.Is(err, ErrSessionExpired):
		m.metrics.Resolve("expired")
		m.metrics.Session("expired", 1)
	default:
		m.metrics.Resolve("error")
		return 0, false, err
	}
	m.log.Debug().Err(err).Msg("credential rejected")
	return 0, false, nil
}

func (m *Manager) lookup(ctx context.Context, token string, now time.Time) (uint, error) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return 0, err
	}

	db := m.db.WithContext(ctx)
	var rows []models.UserToken
	if err := db.Where("user_id = ? AND token = ? AND active = ?", claims.SubjectID, token, true).
		Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	if len(rows) == 0 {
		return 0, ErrSessionNotFound
	}

	row := rows[0]
	now = now.UTC().Truncate(time.Second)
	if !row.ValidTill.After(now) {
		if err := db.Model(&models.UserToken{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{"active": false, "updated_at": now}).Error; err != nil {
			return 0, fmt.Errorf("deactivate expired session: %w", err)
		}
		return 0, ErrSessionExpired
	}
	return row.UserID, nil
}

// Revoke deactivates the sessions backed by token. Revoking an unknown or
// already inactive credential is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	res := m.db.WithContext(ctx).Model(&models.UserToken{}).
		Where("token = ? AND active = ?", token, true).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC().Truncate(time.Second)})
	if res.Error != nil {
		return fmt.Errorf("revoke session: %w", res.Error)
	}
	m.metrics.Session("revoked", int(res.RowsAffected))
	return nil
}
