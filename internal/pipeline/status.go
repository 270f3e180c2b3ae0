package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"

	"github.com/autodoc-ai/stepsync/internal/api"
)

// StatusStore keeps the guide state machine in Redis:
// DRAFT -> PROCESSING -> COMPLETED | FAILED.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusStore connects a Redis-backed status store.
func NewStatusStore(connStr string) (*StatusStore, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Msg("StatusStore")
	return &StatusStore{client: redis.NewClient(opt), ttl: time.Hour * 24}, nil
}

func (s *StatusStore) key(guideID string) string {
	return fmt.Sprintf("guide:%s:status", guideID)
}

// SetStatus moves the guide to a new state. The error message is stored only
// for FAILED.
func (s *StatusStore) SetStatus(ctx context.Context, guideID, status, errMsg string) error {
	goapp.Log.Info().Str("guide", guideID).Str("status", status).Msg("set status")
	key := s.key(guideID)
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if status == api.StatusFailed {
		fields["error"] = errMsg
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// GetStatus returns the current state and stored error message.
func (s *StatusStore) GetStatus(ctx context.Context, guideID string) (string, string, error) {
	data, err := s.client.HGetAll(ctx, s.key(guideID)).Result()
	if err != nil {
		return "", "", fmt.Errorf("get status: %w", err)
	}
	if len(data) == 0 {
		return api.StatusDraft, "", nil
	}
	return data["status"], data["error"], nil
}
