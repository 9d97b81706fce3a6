package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/repository"
)

var progressScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local current = tonumber(redis.call('HGET', KEYS[1], 'progress') or '0')
local wanted = tonumber(ARGV[1])
if wanted > current then
  redis.call('HSET', KEYS[1], 'progress', wanted, 'updatedAt', ARGV[2])
  return wanted
end
return current
`)

var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// promoteScript moves one due job from delayed to waiting. ZREM decides ownership
// if two callers race on the same id. An id whose job hash is gone is dropped.
var promoteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
if redis.call('EXISTS', KEYS[3]) == 0 then
  return -1
end
redis.call('HSET', KEYS[3], 'state', ARGV[2], 'updatedAt', ARGV[3])
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

type redisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewJobRepository stores jobs under keys prefixed with name.
func NewJobRepository(client redis.UniversalClient, name string) repository.JobRepository {
	return &redisRepository{client: client, prefix: name + ":"}
}

func (r *redisRepository) jobKey(id string) string { return r.prefix + "job:" + id }
func (r *redisRepository) waitingKey() string      { return r.prefix + "waiting" }
func (r *redisRepository) activeKey() string       { return r.prefix + "active" }
func (r *redisRepository) delayedKey() string      { return r.prefix + "delayed" }
func (r *redisRepository) completedKey() string    { return r.prefix + "completed" }
func (r *redisRepository) failedKey() string       { return r.prefix + "failed" }
func (r *redisRepository) leaseKey() string        { return r.prefix + "lease" }

func (r *redisRepository) AcquireLease(ctx context.Context, owner string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.leaseKey(), owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return repository.ErrLeaseHeld
	}
	return nil
}

func (r *redisRepository) RenewLease(ctx context.Context, owner string, ttl time.Duration) error {
	n, err := renewScript.Run(ctx, r.client, []string{r.leaseKey()}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	if n == 0 {
		return repository.ErrLeaseLost
	}
	return nil
}

func (r *redisRepository) ReleaseLease(ctx context.Context, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{r.leaseKey()}, owner).Err()
}

func (r *redisRepository) Enqueue(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.jobKey(job.ID),
			"payload", payload,
			"state", string(models.JobStateWaiting),
			"progress", 0,
			"attemptsMade", 0,
			"createdAt", job.CreatedAt.UnixMilli(),
			"updatedAt", job.CreatedAt.UnixMilli(),
		)
		pipe.RPush(ctx, r.waitingKey(), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	job.State = models.JobStateWaiting
	return nil
}

func (r *redisRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	fields, err := r.client.HGetAll(ctx, r.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrJobNotFound
	}
	return decodeJob(id, fields)
}

func (r *redisRepository) Next(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	id, err := r.client.BLMove(ctx, r.waitingKey(), r.activeKey(), "LEFT", "RIGHT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}

	now := time.Now().UnixMilli()
	n, err := r.client.Exists(ctx, r.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}
	if n == 0 {
		// purged while queued
		r.client.LRem(ctx, r.activeKey(), 0, id)
		return nil, nil
	}
	if err := r.client.HSet(ctx, r.jobKey(id), "state", string(models.JobStateActive), "updatedAt", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to mark job active: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *redisRepository) RecoverActive(ctx context.Context) (int, error) {
	recovered := 0
	for {
		id, err := r.client.LMove(ctx, r.activeKey(), r.waitingKey(), "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("failed to recover active jobs: %w", err)
		}
		if err := r.client.HSet(ctx, r.jobKey(id), "state", string(models.JobStateWaiting)).Err(); err != nil {
			return recovered, err
		}
		recovered++
	}
}

func (r *redisRepository) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	promoted := 0
	for _, id := range ids {
		n, err := promoteScript.Run(ctx, r.client,
			[]string{r.delayedKey(), r.waitingKey(), r.jobKey(id)},
			id, string(models.JobStateWaiting), now.UnixMilli(),
		).Int()
		if err != nil {
			return promoted, fmt.Errorf("failed to promote job %s: %w", id, err)
		}
		if n == 1 {
			promoted++
		}
	}
	return promoted, nil
}

func (r *redisRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	n, err := progressScript.Run(ctx, r.client, []string{r.jobKey(id)}, progress, time.Now().UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if n < 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

func (r *redisRepository) SaveCheckpoint(ctx context.Context, id string, cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return r.client.HSet(ctx, r.jobKey(id), "checkpoint", data).Err()
}

func (r *redisRepository) Complete(ctx context.Context, id string, result *models.Result, now time.Time) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return r.finish(ctx, id, r.completedKey(), now, now,
		"state", string(models.JobStateCompleted),
		"progress", 100,
		"result", data,
		"failedReason", "",
	)
}

func (r *redisRepository) Retry(ctx context.Context, id string, reason string, readyAt time.Time) error {
	return r.finish(ctx, id, r.delayedKey(), readyAt, time.Time{},
		"state", string(models.JobStateDelayed),
		"failedReason", reason,
	)
}

func (r *redisRepository) Fail(ctx context.Context, id string, reason string, now time.Time) error {
	return r.finish(ctx, id, r.failedKey(), now, now,
		"state", string(models.JobStateFailed),
		"failedReason", reason,
	)
}

// finish takes the job off the active list, counts the attempt and files it in set with score.
func (r *redisRepository) finish(ctx context.Context, id, set string, score, finishedAt time.Time, fields ...interface{}) error {
	n, err := r.client.Exists(ctx, r.jobKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrJobNotFound
	}

	fields = append(fields, "updatedAt", time.Now().UnixMilli())
	if !finishedAt.IsZero() {
		fields = append(fields, "finishedAt", finishedAt.UnixMilli())
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, r.activeKey(), 0, id)
		pipe.HIncrBy(ctx, r.jobKey(id), "attemptsMade", 1)
		pipe.HSet(ctx, r.jobKey(id), fields...)
		pipe.ZAdd(ctx, set, redis.Z{Score: float64(score.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, err)
	}
	return nil
}

func (r *redisRepository) Sweep(ctx context.Context, now time.Time, retention repository.Retention) (int, error) {
	expired := func(key string, age time.Duration) ([]string, error) {
		return r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + strconv.FormatInt(now.Add(-age).UnixMilli(), 10),
		}).Result()
	}

	oldCompleted, err := expired(r.completedKey(), retention.CompletedAge)
	if err != nil {
		return 0, fmt.Errorf("failed to scan completed jobs: %w", err)
	}
	// everything past the newest CompletedKeep entries
	overflow, err := r.client.ZRevRange(ctx, r.completedKey(), int64(retention.CompletedKeep), -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan completed jobs: %w", err)
	}
	oldFailed, err := expired(r.failedKey(), retention.FailedAge)
	if err != nil {
		return 0, fmt.Errorf("failed to scan failed jobs: %w", err)
	}

	completed := dedupe(oldCompleted, overflow)
	if len(completed)+len(oldFailed) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range completed {
			pipe.ZRem(ctx, r.completedKey(), id)
			pipe.Del(ctx, r.jobKey(id))
		}
		for _, id := range oldFailed {
			pipe.ZRem(ctx, r.failedKey(), id)
			pipe.Del(ctx, r.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", err)
	}
	return len(completed) + len(oldFailed), nil
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func decodeJob(id string, fields map[string]string) (*models.Job, error) {
	job := &models.Job{
		ID:           id,
		State:        models.JobState(fields["state"]),
		FailedReason: fields["failedReason"],
	}

	if err := json.Unmarshal([]byte(fields["payload"]), &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", id, err)
	}
	if raw := fields["result"]; raw != "" {
		job.Result = &models.Result{}
		if err := json.Unmarshal([]byte(raw), job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result of %s: %w", id, err)
		}
	}
	if raw := fields["checkpoint"]; raw != "" {
		job.Checkpoint = &models.Checkpoint{}
		if err := json.Unmarshal([]byte(raw), job.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint of %s: %w", id, err)
		}
	}

	job.Progress, _ = strconv.Atoi(fields["progress"])
	job.AttemptsMade, _ = strconv.Atoi(fields["attemptsMade"])
	job.CreatedAt = parseMillis(fields["createdAt"])
	job.UpdatedAt = parseMillis(fields["updatedAt"])
	job.FinishedAt = parseMillis(fields["finishedAt"])
	return job, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
