package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/history"
	historydynamo "github.com/pdnchat/pdnchat/internal/history/dynamodb"
	historypg "github.com/pdnchat/pdnchat/internal/history/postgres"
	historyredis "github.com/pdnchat/pdnchat/internal/history/redis"
	historysqlite "github.com/pdnchat/pdnchat/internal/history/sqlite"
)

// openHistory builds the configured conversation store. The returned close
// function is never nil.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.HistoryMemory, "":
		return history.NewMemoryStore(), noop, nil
	case config.HistorySQLite:
		store, err := historysqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.HistoryPostgres:
		db, err := historypg.Open(ctx, historypg.DBConfig{
			DSN:             cfg.PostgresDSN,
			ApplicationName: "pdnchat-api",
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, noop, err
		}
		return historypg.NewStore(db), db.Close, nil
	case config.HistoryRedis:
		store, err := historyredis.New(historyredis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.HistoryDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		store, err := historydynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.TTL)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported history backend %q", cfg.Backend)
	}
}

// historyPinger returns the store's health probe, or nil when it has none.
func historyPinger(store history.Store) history.Pinger {
	if pinger, ok := store.(history.Pinger); ok {
		return pinger
	}
	return nil
}
