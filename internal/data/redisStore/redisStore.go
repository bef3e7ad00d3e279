package redisStore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	logger    = logger_i.NewLogger("redis")
	once      sync.Once
)

// Store is one redis logical database. Job, message and registry data each get their own.
type Store struct {
	client *redis.Client
	Type   int
}

// GetRedisStore returns the shared store for dbType, connecting on first use.
// It returns nil when redis cannot be reached so callers can fall back to in-memory stores.
func GetRedisStore(ctx context.Context, dbType int) *Store {
	mu.RLock()
	instance, exists := instances[dbType]
	mu.RUnlock()

	if exists {
		return instance
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[dbType]; exists {
		return instance
	}
	return createNewStore(ctx, dbType)
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for dbType, store := range instances {
		if err := store.client.Close(); err != nil {
			logger.Error("Error closing redis client", "db", dbType, "error", err)
		}
		delete(instances, dbType)
	}
	logger.Info("Redis Store Closed successfully")
}

// redisOptions reads REDIS_URL first, then REDIS_ADDR and REDIS_PASSWORD, then the defaults.
// dbType always picks the logical database.
func redisOptions(dbType int) (*redis.Options, error) {
	opts := &redis.Options{Addr: config.RedisAddr, Password: config.RedisPassword}
	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		opts.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		opts.Password = password
	}
	opts.DB = dbType
	opts.ContextTimeoutEnabled = true
	opts.ReadTimeout = 30 * time.Second
	opts.WriteTimeout = 30 * time.Second
	return opts, nil
}

func createNewStore(ctx context.Context, dbType int) *Store {
	opts, err := redisOptions(dbType)
	if err != nil {
		logger.Error("Invalid redis configuration", "error", err)
		return nil
	}
	log := logger.With("db", dbType, "addr", opts.Addr)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is offline", "error", err)
		_ = client.Close()
		return nil
	}
	log.Info("Redis store connected")

	store := &Store{client: client, Type: dbType}
	instances[dbType] = store
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return store
}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) String() string {
	return fmt.Sprintf("redis db %d", s.Type)
}
