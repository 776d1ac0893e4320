// Package cache keeps read-only wallet snapshots in Redis. It is never
// consulted for a write decision; the ledger always re-reads rows for update.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

const (
	walletKeyPrefix     = "wallet:"
	userWalletKeyPrefix = "wallet:user:"
)

type walletEntry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Version   int64           `json:"version"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	// Tombstone marks a version committed after the last cached snapshot. It
	// reads as a miss but still fences off older snapshots.
	Tombstone bool            `json:"tombstone,omitempty"`
}

// storeIfNotOlder writes ARGV[1] unless the entry already cached carries a
// newer version than ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
var storeIfNotOlder = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, entry = pcall(cjson.decode, current)
	if ok and type(entry) == 'table' and tonumber(entry.version) and tonumber(entry.version) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// WalletCache is safe to use as a nil pointer, which behaves as an always-miss cache.
type WalletCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWalletCache(client *redis.Client, ttl time.Duration) *WalletCache {
	if client == nil {
		return nil
	}
	return &WalletCache{client: client, ttl: ttl}
}

func walletKey(id uuid.UUID) string {
	return walletKeyPrefix + id.String()
}

func userWalletKey(userID uuid.UUID) string {
	return userWalletKeyPrefix + userID.String()
}

func (c *WalletCache) Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, walletKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("wallet cache read failed", "wallet_id", id, "error", err)
		}
		return nil, false
	}

	var e walletEntry
	if err := json.Unmarshal(data, &e); err != nil {
		logging.FromContext(ctx).Warn("wallet cache entry corrupt", "wallet_id", id, "error", err)
		return nil, false
	}
	if e.Tombstone {
		return nil, false
	}
	return &domain.Wallet{
		ID:        e.ID,
		UserID:    e.UserID,
		Balance:   e.Balance,
		Currency:  domain.Currency(e.Currency),
		Version:   e.Version,
		IsActive:  e.IsActive,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, true
}

// Set caches a snapshot read from the database. A snapshot older than what is
// already cached, including a tombstone left by a later commit, is dropped.
func (c *WalletCache) Set(ctx context.Context, w *domain.Wallet) {
	if c == nil || w == nil {
		return
	}
	stored, err := c.store(ctx, w.ID, walletEntry{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		Currency:  string(w.Currency),
		Version:   w.Version,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("wallet cache write failed", "wallet_id", w.ID, "error", err)
		return
	}
	if !stored {
		logging.FromContext(ctx).Debug("stale wallet snapshot not cached", "wallet_id", w.ID, "version", w.Version)
		return
	}
	// A wallet never changes owner, so the user mapping can outlive snapshots.
	if err := c.client.Set(ctx, userWalletKey(w.UserID), w.ID.String(), 0).Err(); err != nil {
		logging.FromContext(ctx).Warn("wallet cache write failed", "user_id", w.UserID, "error", err)
	}
}

func (c *WalletCache) store(ctx context.Context, id uuid.UUID, e walletEntry) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	n, err := storeIfNotOlder.Run(ctx, c.client, []string{walletKey(id)},
		string(data), e.Version, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetByUser resolves the user's wallet through the owner mapping.
func (c *WalletCache) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, userWalletKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("wallet cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return c.Get(ctx, id)
}

// Invalidate replaces the cached snapshots of committed wallets with
// tombstones at their new versions, so a reader still holding a pre-commit
// row cannot write it back.
func (c *WalletCache) Invalidate(ctx context.Context, committed ...*domain.Wallet) {
	if c == nil {
		return
	}
	for _, w := range committed {
		if w == nil {
			continue
		}
		_, err := c.store(ctx, w.ID, walletEntry{ID: w.ID, UserID: w.UserID, Version: w.Version, Tombstone: true})
		if err == nil {
			continue
		}
		logging.FromContext(ctx).Warn("wallet cache invalidation failed", "wallet_id", w.ID, "error", err)
		if err := c.client.Del(ctx, walletKey(w.ID)).Err(); err != nil {
			logging.FromContext(ctx).Warn("wallet cache delete failed", "wallet_id", w.ID, "error", err)
		}
	}
}

func (c *WalletCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
