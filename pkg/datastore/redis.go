package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-shellwords"
	"github.com/redis/go-redis/v9"

	"github.com/DrSkyle/vitool/pkg/session"
)

// RedisProvider opens go-redis clients. Statements are raw commands such as
// `GET key` or `HSET h f v`.
type RedisProvider struct{}

// Open implements session.Provider. Explicit credentials override any found in
// the URL.
func (RedisProvider) Open(ctx context.Context, url, username, password string) (session.Handle, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if username != "" {
		opts.Username = username
	}
	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisHandle{client: client}, nil
}

type redisHandle struct {
	client *redis.Client
}

func (h *redisHandle) do(ctx context.Context, stmt string) (any, error) {
	words, err := shellwords.Parse(stmt)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, errors.New("empty command")
	}
	args := make([]any, len(words))
	for i, w := range words {
		args[i] = w
	}
	v, err := h.client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return v, err
}

// Query renders the reply as a single "value" column, one row per element
// for array replies and key/value columns for map replies.
func (h *redisHandle) Query(ctx context.Context, stmt string) (*session.ResultSet, error) {
	v, err := h.do(ctx, stmt)
	if err != nil {
		return nil, err
	}

	switch reply := v.(type) {
	case []any:
		rs := &session.ResultSet{Columns: []string{"value"}, Rows: make([][]any, 0, len(reply))}
		for _, e := range reply {
			rs.Rows = append(rs.Rows, []any{e})
		}
		return rs, nil
	case map[any]any:
		rs := &session.ResultSet{Columns: []string{"key", "value"}, Rows: make([][]any, 0, len(reply))}
		for k, e := range reply {
			rs.Rows = append(rs.Rows, []any{fmt.Sprint(k), e})
		}
		return rs, nil
	case nil:
		return &session.ResultSet{Columns: []string{"value"}, Rows: [][]any{}}, nil
	default:
		return &session.ResultSet{Columns: []string{"value"}, Rows: [][]any{{reply}}}, nil
	}
}

// Exec reports integer replies (DEL, HSET, ...) as the affected count and
// anything else as a single affected row.
func (h *redisHandle) Exec(ctx context.Context, stmt string) (int64, error) {
	v, err := h.do(ctx, stmt)
	if err != nil {
		return 0, err
	}
	switch reply := v.(type) {
	case int64:
		return reply, nil
	case nil:
		return 0, nil
	default:
		return 1, nil
	}
}

func (h *redisHandle) Close() error {
	return h.client.Close()
}
