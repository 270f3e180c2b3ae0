package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/autodoc-ai/stepsync/internal/api"
)

// DefaultStaleThreshold after which a job with no heartbeat is reclaimed.
const DefaultStaleThreshold = 60 * time.Second

// Handler processes one job kind.
type Handler func(ctx context.Context, job api.Job) error

// Options for the queue consumer. Zero values fall back to defaults.
type Options struct {
	Stream            string
	Group             string
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
	GCInterval        time.Duration
}

func (o Options) withDefaults() Options {
	if o.Stream == "" {
		o.Stream = "stepsync:jobs"
	}
	if o.Group == "" {
		o.Group = "render-workers"
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.StaleThreshold <= 0 {
		o.StaleThreshold = DefaultStaleThreshold
	}
	if o.GCInterval <= 0 {
		o.GCInterval = 5 * time.Minute
	}
	return o
}

// Queue is a Redis Streams consumer group delivering render jobs
// at least once. Handlers are registered per job kind in a static table;
// unknown kinds are rejected at registration, not dispatch.
type Queue struct {
	client   *redis.Client
	opts     Options
	consumer string
	handlers map[string]Handler
	entropy  *ulid.MonotonicEntropy
}

// New connects the queue.
func New(connStr string, opts Options) (*Queue, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	o := opts.withDefaults()
	goapp.Log.Info().Str("redis", opt.Addr).Str("stream", o.Stream).Str("group", o.Group).Msg("Queue")
	return &Queue{
		client:   redis.NewClient(opt),
		opts:     o,
		consumer: fmt.Sprintf("worker-%d", os.Getpid()),
		handlers: map[string]Handler{},
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

var knownKinds = map[string]bool{
	api.KindRenderGuide: true,
	api.KindMagicEdit:   true,
	api.KindShorts:      true,
}

// Register installs the handler for a job kind. The kind set is closed.
func (q *Queue) Register(kind string, h Handler) error {
	if !knownKinds[kind] {
		return fmt.Errorf("unknown job kind '%s'", kind)
	}
	if h == nil {
		return fmt.Errorf("no handler for '%s'", kind)
	}
	q.handlers[kind] = h
	return nil
}

// Enqueue publishes a job. An empty ID gets a fresh ULID.
func (q *Queue) Enqueue(ctx context.Context, job api.Job) (string, error) {
	if job.ID == "" {
		job.ID = ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy).String()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{"job": string(data)},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	goapp.Log.Info().Str("job", job.ID).Str("kind", job.Kind).Msg("enqueued")
	return job.ID, nil
}

// Run consumes jobs until ctx ends. It also runs the periodic
// garbage-collection pass reclaiming jobs whose owner stopped heartbeating.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	go q.gcLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			goapp.Log.Info().Msg("queue consumer exit")
			return nil
		default:
		}
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.opts.Group,
			Consumer: q.consumer,
			Streams:  []string{q.opts.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			goapp.Log.Error().Err(err).Msg("read group")
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.process(ctx, msg)
			}
		}
	}
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// process dispatches one message. The message is acknowledged after the
// handler returns, success or handled failure alike; only a crashed worker
// leaves it pending for the GC pass to reclaim.
func (q *Queue) process(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values["job"].(string)
	if !ok {
		goapp.Log.Error().Str("id", msg.ID).Msg("message without job payload")
		q.ack(ctx, msg.ID)
		return
	}
	var job api.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		goapp.Log.Error().Err(err).Str("id", msg.ID).Msg("can't decode job")
		q.ack(ctx, msg.ID)
		return
	}
	handler, ok := q.handlers[job.Kind]
	if !ok {
		goapp.Log.Error().Str("kind", job.Kind).Str("job", job.ID).Msg("no handler")
		q.ack(ctx, msg.ID)
		return
	}

	hb := NewHeartbeat(q.client, job.ID, q.consumer, msg.ID, q.opts.HeartbeatInterval)
	hb.Start(ctx)
	defer hb.Stop()

	goapp.Log.Info().Str("job", job.ID).Str("kind", job.Kind).Str("guide", job.GuideID).Msg("processing")
	if err := handler(ctx, job); err != nil {
		goapp.Log.Error().Err(err).Str("job", job.ID).Msg("job failed")
	} else {
		goapp.Log.Info().Str("job", job.ID).Msg("job done")
	}
	q.ack(ctx, msg.ID)
}

func (q *Queue) ack(ctx context.Context, msgID string) {
	if err := q.client.XAck(ctx, q.opts.Stream, q.opts.Group, msgID).Err(); err != nil {
		goapp.Log.Error().Err(err).Str("id", msgID).Msg("can't ack")
	}
}

// gcLoop periodically claims messages idle past the stale threshold and
// pushes them back through the normal dispatch path.
func (q *Queue) gcLoop(ctx context.Context) {
	ticker := time.NewTicker(q.opts.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.ReclaimStale(ctx); err != nil {
				goapp.Log.Error().Err(err).Msg("reclaim stale")
			} else if n > 0 {
				goapp.Log.Info().Int("jobs", n).Msg("reclaimed stale jobs")
			}
		}
	}
}

// ReclaimStale takes over pending messages whose consumer went silent longer
// than the stale threshold and processes them on this worker.
func (q *Queue) ReclaimStale(ctx context.Context) (int, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.consumer,
		MinIdle:  q.opts.StaleThreshold,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("autoclaim: %w", err)
	}
	for _, msg := range msgs {
		q.process(ctx, msg)
	}
	return len(msgs), nil
}
