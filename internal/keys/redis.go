package keys

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore comparte las claves entre réplicas del mock server.
// Layout: hash "<prefix>:signing_keys", field = kid, value = record JSON.
type RedisStore struct {
	client redis.UniversalClient
	key    string

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// RedisConfig configura la conexión.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore conecta y verifica con PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("keys: redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(rdb, cfg.Prefix), nil
}

// NewRedisStoreWithClient usa un cliente ya construido (cluster, sentinel, ...).
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	key := "signing_keys"
	if prefix != "" {
		key = prefix + ":" + key
	}
	return &RedisStore{client: client, key: key, Now: time.Now}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *RedisStore) load(ctx context.Context) ([]SigningKey, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]SigningKey, 0, len(raw))
	for kid, v := range raw {
		k, err := unmarshalRecord([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("redis field %s: %w", kid, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *RedisStore) ActiveKey(ctx context.Context) (*SigningKey, error) {
	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return selectActive(list, s.now())
}

func (s *RedisStore) List(ctx context.Context) ([]SigningKey, error) {
	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return publishable(list, s.now()), nil
}

func (s *RedisStore) Insert(ctx context.Context, k *SigningKey) error {
	data, err := marshalRecord(k)
	if err != nil {
		return err
	}
	ok, err := s.client.HSetNX(ctx, s.key, k.KID, data).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}
