// Package redisstore wraps the redis client behind the operations the
// service needs: chat record hashes, per-user recency indexes, and
// short-lived captcha codes.
package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func chatKey(id string) string { return "chat:" + id }

func userChatKey(userID string) string { return "user:chat:" + userID }

func captchaKey(email string) string { return "captcha:" + email }

// SetChat writes all fields of the record hash at chat:{id}. Re-writing
// the same id overwrites the prior snapshot.
func (s *Store) SetChat(ctx context.Context, id string, fields map[string]any) error {
	return s.rdb.HSet(ctx, chatKey(id), fields).Err()
}

// GetChat returns the stored hash fields, empty when absent.
func (s *Store) GetChat(ctx context.Context, id string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, chatKey(id)).Result()
}

// IndexChat upserts the chat into the user's recency-sorted set.
func (s *Store) IndexChat(ctx context.Context, userID, id string, createdAt int64) error {
	return s.rdb.ZAdd(ctx, userChatKey(userID), redis.Z{
		Score:  float64(createdAt),
		Member: chatKey(id),
	}).Err()
}

// ListChatIDs returns the user's chat ids, most recent first.
func (s *Store) ListChatIDs(ctx context.Context, userID string) ([]string, error) {
	members, err := s.rdb.ZRevRange(ctx, userChatKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, strings.TrimPrefix(m, "chat:"))
	}
	return ids, nil
}

func (s *Store) SetCaptcha(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.rdb.Set(ctx, captchaKey(email), code, ttl).Err()
}

func (s *Store) GetCaptcha(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, captchaKey(email)).Result()
}

func (s *Store) DeleteCaptcha(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, captchaKey(email)).Err()
}
