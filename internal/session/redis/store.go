package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/govsearch/govsearch/internal/session"
)

const defaultTTL = 24 * time.Hour

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	SetXX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Store keeps each session as one JSON value under prefix+"session:"+id.
// Every write refreshes the TTL, so idle sessions expire.
type Store struct {
	kv     kv
	prefix string
	ttl    time.Duration
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     strings.TrimSpace(cfg.Addr),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(&redisKV{client: client}, cfg.Prefix, cfg.TTL)
}

func NewWithClient(c kv, prefix string, ttl time.Duration) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "govsearch:"
	}
	return &Store{kv: c, prefix: prefix, ttl: ttl}, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (s *Store) Close() error {
	if err := s.kv.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	raw, err := session.Marshal(sess)
	if err != nil {
		return err
	}
	created, err := s.kv.SetNX(ctx, s.key(sess.ID), raw, s.ttl)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !created {
		return fmt.Errorf("session %q already exists", sess.ID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	raw, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session.Unmarshal(raw)
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	raw, err := session.Marshal(sess)
	if err != nil {
		return err
	}
	updated, err := s.kv.SetXX(ctx, s.key(sess.ID), raw, s.ttl)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !updated {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	removed, err := s.kv.Del(ctx, s.key(id))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) key(id string) string {
	return s.prefix + "session:" + id
}

type redisKV struct {
	client *goredis.Client
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	return r.client.Get(ctx, key).Bytes()
}

func (r *redisKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *redisKV) SetXX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetXX(ctx, key, value, ttl).Result()
}

func (r *redisKV) Del(ctx context.Context, key string) (int64, error) {
	return r.client.Del(ctx, key).Result()
}

func (r *redisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisKV) Close() error {
	return r.client.Close()
}
