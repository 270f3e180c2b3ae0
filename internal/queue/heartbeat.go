package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"
)

// DefaultHeartbeatInterval between liveness refreshes.
const DefaultHeartbeatInterval = 10 * time.Second

// Heartbeat refreshes a liveness marker for one in-flight job from a
// background goroutine. A job whose marker goes stale is reclaimed by the
// garbage-collection pass and redelivered.
type Heartbeat struct {
	client   *redis.Client
	jobID    string
	workerID string
	streamID string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func heartbeatKey(jobID string) string {
	return fmt.Sprintf("heartbeat:%s", jobID)
}

// NewHeartbeat creates a heartbeat for a claimed job.
func NewHeartbeat(client *redis.Client, jobID, workerID, streamID string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		client:   client,
		jobID:    jobID,
		workerID: workerID,
		streamID: streamID,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start refreshes the marker until Stop is called or ctx ends.
func (h *Heartbeat) Start(ctx context.Context) {
	startedAt := time.Now().UTC().Format(time.RFC3339)
	h.refresh(ctx, startedAt)
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.refresh(ctx, startedAt)
			case <-h.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the refresh loop and removes the marker.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.client.Del(ctx, heartbeatKey(h.jobID)).Err(); err != nil {
		goapp.Log.Warn().Err(err).Str("job", h.jobID).Msg("can't delete heartbeat")
	}
}

func (h *Heartbeat) refresh(ctx context.Context, startedAt string) {
	key := heartbeatKey(h.jobID)
	err := h.client.HSet(ctx, key, map[string]interface{}{
		"worker_id":      h.workerID,
		"stream_id":      h.streamID,
		"started_at":     startedAt,
		"last_heartbeat": time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		goapp.Log.Warn().Err(err).Str("job", h.jobID).Msg("can't update heartbeat")
		return
	}
	_ = h.client.Expire(ctx, key, h.interval*2+10*time.Second).Err()
}
