package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clickforge/affiliate-tracker/utils"
)

// Job is the envelope stored on the queue
type Job struct {
	Name      string            `json:"job"`
	Data      map[string]string `json:"data"`
	Attempts  int               `json:"attempts"`
	CreatedAt int64             `json:"created_at"`
}

// QueueService is the push/pop contract consumed by the pipelines and
// workers. Delayed jobs live on a sorted set scored by their ready time and
// are promoted on pop.
type QueueService interface {
	Push(ctx context.Context, jobName string, data map[string]string, delaySeconds int) error
	// PushJob requeues an existing envelope, preserving its attempt count
	PushJob(ctx context.Context, job *Job, delaySeconds int) error
	Pop(ctx context.Context) (*Job, error)
}

// RedisQueueService implements QueueService on a redis list plus a delayed
// sorted set
type RedisQueueService struct {
	client *redis.Client
}

func NewRedisQueueService(client *redis.Client) *RedisQueueService {
	return &RedisQueueService{client: client}
}

func (q *RedisQueueService) Push(ctx context.Context, jobName string, data map[string]string, delaySeconds int) error {
	return q.PushJob(ctx, &Job{
		Name:      jobName,
		Data:      data,
		Attempts:  0,
		CreatedAt: utils.UTCNow().Unix(),
	}, delaySeconds)
}

func (q *RedisQueueService) PushJob(ctx context.Context, job *Job, delaySeconds int) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	if delaySeconds > 0 {
		readyAt := float64(utils.UTCNow().Add(time.Duration(delaySeconds) * time.Second).Unix())
		if err := q.client.ZAdd(ctx, utils.DelayedQueueKey, redis.Z{Score: readyAt, Member: payload}).Err(); err != nil {
			return fmt.Errorf("failed to push delayed job: %w", err)
		}
		return nil
	}

	if err := q.client.LPush(ctx, utils.JobQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

// Pop promotes due delayed jobs onto the ready list, then takes the oldest
// ready job. Returns nil when the queue is empty.
func (q *RedisQueueService) Pop(ctx context.Context) (*Job, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return nil, err
	}

	raw, err := q.client.RPop(ctx, utils.JobQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &job, nil
}

func (q *RedisQueueService) promoteDelayed(ctx context.Context) error {
	now := fmt.Sprintf("%d", utils.UTCNow().Unix())
	due, err := q.client.ZRangeByScore(ctx, utils.DelayedQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	for _, member := range due {
		// Remove before pushing so two workers never promote the same job
		removed, err := q.client.ZRem(ctx, utils.DelayedQueueKey, member).Result()
		if err != nil {
			return fmt.Errorf("failed to remove delayed job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, utils.JobQueueKey, member).Err(); err != nil {
			return fmt.Errorf("failed to promote delayed job: %w", err)
		}
	}
	return nil
}

// InMemoryQueueService is a QueueService for tests
type InMemoryQueueService struct {
	Jobs []Job
}

func NewInMemoryQueueService() *InMemoryQueueService {
	return &InMemoryQueueService{}
}

func (q *InMemoryQueueService) Push(_ context.Context, jobName string, data map[string]string, _ int) error {
	q.Jobs = append(q.Jobs, Job{Name: jobName, Data: data, CreatedAt: utils.UTCNow().Unix()})
	return nil
}

func (q *InMemoryQueueService) PushJob(_ context.Context, job *Job, _ int) error {
	q.Jobs = append(q.Jobs, *job)
	return nil
}

func (q *InMemoryQueueService) Pop(_ context.Context) (*Job, error) {
	if len(q.Jobs) == 0 {
		return nil, nil
	}
	job := q.Jobs[0]
	q.Jobs = q.Jobs[1:]
	return &job, nil
}
