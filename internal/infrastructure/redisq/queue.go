package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

const (
	// priorityBand keeps priority strictly above the millisecond timestamp in
	// the ZSET score: priority*1e13 dominates, enqueue time breaks ties FIFO.
	priorityBand = 1e13
)

// Queue is a Redis-backed priority queue. Members live in a ZSET scored by
// (priority, enqueue time); payloads live in a companion hash keyed by job ID
// so a job can be removed by identifier before a worker picks it up.
type Queue struct {
	client  *redis.Client
	name    string
	zsetKey string
	dataKey string
	delayed string
}

func NewQueue(client *redis.Client, name string) *Queue {
	return &Queue{
		client:  client,
		name:    name,
		zsetKey: "queue:" + name,
		dataKey: "queue:" + name + ":payloads",
		delayed: "queue:" + name + ":delayed",
	}
}

func score(priority int, at time.Time) float64 {
	return float64(priority)*priorityBand + float64(at.UnixMilli())
}

func (q *Queue) Enqueue(ctx context.Context, job domain.RunJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.dataKey, job.ID, payload)
	pipe.ZAdd(ctx, q.zsetKey, &redis.Z{Score: score(job.Priority, time.Now()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// EnqueueDelayed parks the job until readyAt; PromoteDelayed moves it into the
// main queue once due. Used for delayed retry of transient dispatch failures.
func (q *Queue) EnqueueDelayed(ctx context.Context, job domain.RunJob, readyAt time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.dataKey, job.ID, payload)
	pipe.ZAdd(ctx, q.delayed, &redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue delayed job %s: %w", job.ID, err)
	}
	return nil
}

// PromoteDelayed moves all jobs whose delay has elapsed into the main queue.
func (q *Queue) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list delayed jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	jobs, err := q.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	pipe := q.client.TxPipeline()
	for _, job := range jobs {
		pipe.ZRem(ctx, q.delayed, job.ID)
		pipe.ZAdd(ctx, q.zsetKey, &redis.Z{Score: score(job.Priority, now), Member: job.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("promote delayed jobs: %w", err)
	}
	return len(jobs), nil
}

// Pending returns all queued-but-not-started jobs in dispatch order.
func (q *Queue) Pending(ctx context.Context) ([]domain.RunJob, error) {
	ids, err := q.client.ZRange(ctx, q.zsetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return q.load(ctx, ids)
}

// Remove deletes jobs by ID from both the ready and delayed sets. Returns how
// many were actually removed.
func (q *Queue) Remove(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	members := make([]any, len(ids))
	fields := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id
		fields[i] = id
	}

	pipe := q.client.TxPipeline()
	ready := pipe.ZRem(ctx, q.zsetKey, members...)
	delayed := pipe.ZRem(ctx, q.delayed, members...)
	pipe.HDel(ctx, q.dataKey, fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("remove jobs: %w", err)
	}
	return int(ready.Val() + delayed.Val()), nil
}

// Depth returns the number of ready jobs, for the queue-depth gauge.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.zsetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

func (q *Queue) load(ctx context.Context, ids []string) ([]domain.RunJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := q.client.HMGet(ctx, q.dataKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load job payloads: %w", err)
	}

	jobs := make([]domain.RunJob, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue // payload evicted or removed concurrently
		}
		var job domain.RunJob
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("unmarshal job payload: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
