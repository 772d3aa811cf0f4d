package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/veritid/identity-guard/pkg/cache"
	pg "github.com/veritid/identity-guard/pkg/database/postgres"
	"github.com/veritid/identity-guard/pkg/database/query"

	"github.com/veritid/identity-guard/pkg/data/attempt"
	"github.com/veritid/identity-guard/pkg/data/cooldown"
	"github.com/veritid/identity-guard/pkg/data/denylist"
	"github.com/veritid/identity-guard/pkg/data/ratelimit"

	attempt_memory_client "github.com/veritid/identity-guard/pkg/data/attempt/memory"
	cooldown_memory_client "github.com/veritid/identity-guard/pkg/data/cooldown/memory"
	denylist_memory_client "github.com/veritid/identity-guard/pkg/data/denylist/memory"
	ratelimit_memory_client "github.com/veritid/identity-guard/pkg/data/ratelimit/memory"

	attempt_postgres_client "github.com/veritid/identity-guard/pkg/data/attempt/postgres"
	cooldown_postgres_client "github.com/veritid/identity-guard/pkg/data/cooldown/postgres"
	denylist_postgres_client "github.com/veritid/identity-guard/pkg/data/denylist/postgres"
	ratelimit_postgres_client "github.com/veritid/identity-guard/pkg/data/ratelimit/postgres"

	cooldown_redis_client "github.com/veritid/identity-guard/pkg/data/cooldown/redis"
	ratelimit_redis_client "github.com/veritid/identity-guard/pkg/data/ratelimit/redis"
)

// Cache Constants
const (
	maxDenylistCacheBudget    = 10000
	singleDenylistCacheWeight = 1
	denylistCacheTTL          = 5 * time.Minute
)

const (
	maxAttemptPageSize = 100
)

type denylistCacheEntry struct {
	mu           sync.RWMutex
	isDisposable bool
	cachedAt     time.Time
}

type DatabaseData interface {
	// Attempt Ledger
	// --------------------------------------------------------------------------------
	PutAttemptRecord(ctx context.Context, record *attempt.Record) error
	CountAttemptsForFingerprintSinceTimestamp(ctx context.Context, fingerprint string, since time.Time) (uint64, error)
	GetAllAttemptsForIdentifier(ctx context.Context, identifierHash string, opts ...query.Option) ([]*attempt.Record, error)

	// Rate Limit Counters
	// --------------------------------------------------------------------------------
	CheckAndIncrementAttemptCount(ctx context.Context, dimension ratelimit.Dimension, key string, now time.Time, window time.Duration, limit uint64) (uint64, bool, error)

	// Dispatch Cooldown
	// --------------------------------------------------------------------------------
	GetCooldownState(ctx context.Context, identifier string) (*cooldown.State, error)
	SaveCooldownState(ctx context.Context, state *cooldown.State) error

	// Disposable Domain Denylist
	// --------------------------------------------------------------------------------
	IsDisposableDomain(ctx context.Context, domain string) (bool, error)
	AddDisposableDomain(ctx context.Context, entry *denylist.Entry) error

	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	attempts  attempt.Store
	ratelimit ratelimit.Store
	cooldown  cooldown.Store
	denylist  denylist.Store

	denylistCache cache.Cache

	db *sqlx.DB
}

func NewDatabaseProvider(dbConfig *pg.Config) (DatabaseData, error) {
	db, err := pg.NewWithUsernameAndPassword(
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		fmt.Sprint(dbConfig.Port),
		dbConfig.DbName,
	)
	if err != nil {
		return nil, err
	}

	if dbConfig.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(dbConfig.MaxOpenConnections)
	}
	if dbConfig.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(dbConfig.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(time.Hour)
	db.SetConnMaxLifetime(time.Hour)

	return &DatabaseProvider{
		attempts:  attempt_postgres_client.New(db),
		ratelimit: ratelimit_postgres_client.New(db),
		cooldown:  cooldown_postgres_client.New(db),
		denylist:  denylist_postgres_client.New(db),

		denylistCache: cache.NewCache(maxDenylistCacheBudget),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

// NewDatabaseProviderWithRedisCounters backs the hot counter and cooldown
// paths with redis while postgres remains the system of record for the
// ledger and denylist.
func NewDatabaseProviderWithRedisCounters(dbConfig *pg.Config, redisClient *redis.Client) (DatabaseData, error) {
	p, err := NewDatabaseProvider(dbConfig)
	if err != nil {
		return nil, err
	}

	provider := p.(*DatabaseProvider)
	provider.ratelimit = ratelimit_redis_client.New(redisClient)
	provider.cooldown = cooldown_redis_client.New(redisClient)

	return provider, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		attempts:  attempt_memory_client.New(),
		ratelimit: ratelimit_memory_client.New(),
		cooldown:  cooldown_memory_client.New(),
		denylist:  denylist_memory_client.New(),

		denylistCache: cache.NewCache(maxDenylistCacheBudget),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Attempt Ledger
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) PutAttemptRecord(ctx context.Context, record *attempt.Record) error {
	return dp.attempts.Put(ctx, record)
}
func (dp *DatabaseProvider) CountAttemptsForFingerprintSinceTimestamp(ctx context.Context, fingerprint string, since time.Time) (uint64, error) {
	return dp.attempts.CountForFingerprintSinceTimestamp(ctx, fingerprint, since)
}
func (dp *DatabaseProvider) GetAllAttemptsForIdentifier(ctx context.Context, identifierHash string, opts ...query.Option) ([]*attempt.Record, error) {
	req, err := query.DefaultPaginationHandlerWithLimit(maxAttemptPageSize, opts...)
	if err != nil {
		return nil, err
	}

	return dp.attempts.GetAllByIdentifier(ctx, identifierHash, req.Cursor, req.Limit, req.SortBy)
}

// Rate Limit Counters
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CheckAndIncrementAttemptCount(ctx context.Context, dimension ratelimit.Dimension, key string, now time.Time, window time.Duration, limit uint64) (uint64, bool, error) {
	return dp.ratelimit.CheckAndIncrement(ctx, dimension, key, now, window, limit)
}

// Dispatch Cooldown
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) GetCooldownState(ctx context.Context, identifier string) (*cooldown.State, error) {
	return dp.cooldown.Get(ctx, identifier)
}
func (dp *DatabaseProvider) SaveCooldownState(ctx context.Context, state *cooldown.State) error {
	return dp.cooldown.Save(ctx, state)
}

// Disposable Domain Denylist
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) IsDisposableDomain(ctx context.Context, domain string) (bool, error) {
	domain = strings.ToLower(domain)

	cached, ok := dp.denylistCache.Retrieve(domain)
	if ok {
		entry := cached.(*denylistCacheEntry)

		entry.mu.RLock()
		if time.Since(entry.cachedAt) < denylistCacheTTL {
			defer entry.mu.RUnlock()
			return entry.isDisposable, nil
		}
		entry.mu.RUnlock()

		isDisposable, err := dp.denylist.IsDisposableDomain(ctx, domain)
		if err != nil {
			return false, err
		}

		entry.mu.Lock()
		entry.isDisposable = isDisposable
		entry.cachedAt = time.Now()
		entry.mu.Unlock()

		return isDisposable, nil
	}

	isDisposable, err := dp.denylist.IsDisposableDomain(ctx, domain)
	if err != nil {
		return false, err
	}

	dp.denylistCache.Insert(domain, &denylistCacheEntry{
		isDisposable: isDisposable,
		cachedAt:     time.Now(),
	}, singleDenylistCacheWeight)

	return isDisposable, nil
}
func (dp *DatabaseProvider) AddDisposableDomain(ctx context.Context, entry *denylist.Entry) error {
	if err := dp.denylist.Put(ctx, entry); err != nil {
		return err
	}

	// Drop any stale negative result for the domain
	if cached, ok := dp.denylistCache.Retrieve(entry.Domain); ok {
		cacheEntry := cached.(*denylistCacheEntry)
		cacheEntry.mu.Lock()
		cacheEntry.isDisposable = true
		cacheEntry.cachedAt = time.Now()
		cacheEntry.mu.Unlock()
	}

	return nil
}
