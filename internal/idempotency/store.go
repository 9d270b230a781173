// Package idempotency remembers the response of client POSTs by
// Idempotency-Key so a retried checkout or withdrawal is answered from the
// first attempt instead of running again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const Header = "Idempotency-Key"

// RedisClient is the subset of *redis.Client the store needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	client RedisClient
	ttl    time.Duration
}

func NewStore(client RedisClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Key scopes a client key to its user so two users cannot collide.
func Key(userID, clientKey string) string {
	return "idem:" + userID + ":" + clientKey
}

// Fingerprint identifies the request a key was first used with.
func Fingerprint(method, path string, body []byte) string {
	sum := sha256.Sum256(append([]byte(method+" "+path+"\n"), body...))
	return hex.EncodeToString(sum[:])
}

// Begin claims key for a new request. When the key is already taken it
// returns the stored record and claimed=false.
func (s *Store) Begin(ctx context.Context, key, fingerprint string) (rec *Record, claimed bool, err error) {
	marker, err := json.Marshal(Record{Status: StatusInProgress, Fingerprint: fingerprint})
	if err != nil {
		return nil, false, fmt.Errorf("marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key, marker, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	rec, err = s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		// expired between the two calls; the next attempt can claim it
		return &Record{Status: StatusInProgress, Fingerprint: fingerprint}, false, nil
	}
	return rec, false, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Complete stores the final response under key.
func (s *Store) Complete(ctx context.Context, key string, rec Record) error {
	rec.Status = StatusDone
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

// Abandon frees key so the client may retry, used when the request failed
// without a definite outcome.
func (s *Store) Abandon(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
