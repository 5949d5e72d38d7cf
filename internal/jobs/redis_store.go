package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "sortjob:"
	maxTxRetries = 16
)

// record は Redis に保存するジョブ状態です。
type record struct {
	JobID     string    `json:"jobId"`
	State     State     `json:"state"`
	Path      string    `json:"path,omitempty"`
	Count     int       `json:"count,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *record) status() (Status, error) {
	switch r.State {
	case StateQueued:
		return Queued{}, nil
	case StateProgress:
		return InProgress{}, nil
	case StateReady:
		return Ready{Path: r.Path, Count: r.Count, Checksum: r.Checksum}, nil
	case StateFailed:
		return Failed{Message: r.Message}, nil
	default:
		return nil, fmt.Errorf("unknown job state %q", r.State)
	}
}

func (r *record) apply(s Status) {
	r.State = s.State()
	r.Path, r.Count, r.Checksum, r.Message = "", 0, "", ""
	switch v := s.(type) {
	case Ready:
		r.Path, r.Count, r.Checksum = v.Path, v.Count, v.Checksum
	case Failed:
		r.Message = v.Message
	}
}

// RedisStore はジョブ状態を Redis に保存します。複数プロセスから参照できます。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore は RedisStore を作成します。ttl が 0 の場合は期限なしです。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Get はジョブ状態を取得します。
func (s *RedisStore) Get(ctx context.Context, jobID string) (Status, error) {
	if jobID == "" {
		return nil, ErrNotFound
	}
	rec, err := s.load(ctx, s.rdb, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec.status()
}

// Set は WATCH/MULTI で現在値を確認しながら状態を更新します。
func (s *RedisStore) Set(ctx context.Context, jobID string, status Status) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	key := jobKey(jobID)

	txf := func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		var current Status
		if rec != nil {
			if current, err = rec.status(); err != nil {
				return err
			}
		}
		if !canTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stateOf(current), stateOf(status))
		}

		now := time.Now().UTC()
		if rec == nil {
			rec = &record{JobID: jobID, CreatedAt: now}
		}
		rec.apply(status)
		rec.UpdatedAt = now
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too much contention", jobID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, key string) (*record, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
