package data

import (
	"github.com/redis/go-redis/v9"

	pg "github.com/veritid/identity-guard/pkg/database/postgres"
)

type Provider interface {
	DatabaseData

	GetDatabaseDataProvider() DatabaseData
}

type provider struct {
	*DatabaseProvider
}

func NewDataProvider(dbConfig *pg.Config) (Provider, error) {
	db, err := NewDatabaseProvider(dbConfig)
	if err != nil {
		return nil, err
	}

	return &provider{
		DatabaseProvider: db.(*DatabaseProvider),
	}, nil
}

// NewDataProviderWithRedisCounters uses redis for counters and cooldowns,
// postgres for everything else.
func NewDataProviderWithRedisCounters(dbConfig *pg.Config, redisClient *redis.Client) (Provider, error) {
	db, err := NewDatabaseProviderWithRedisCounters(dbConfig, redisClient)
	if err != nil {
		return nil, err
	}

	return &provider{
		DatabaseProvider: db.(*DatabaseProvider),
	}, nil
}

func NewTestDataProvider() Provider {
	return &provider{
		DatabaseProvider: NewTestDatabaseProvider().(*DatabaseProvider),
	}
}

func (p *provider) GetDatabaseDataProvider() DatabaseData {
	return p.DatabaseProvider
}
