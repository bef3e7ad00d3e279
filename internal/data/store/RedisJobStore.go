package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/data/redisStore"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

func jobKey(id string) string { return "job:" + id }

// RedisJobStore keeps each job as one JSON value. Every save refreshes the TTL, so a job
// lives RedisJobStoreTTL past its last state change.
type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisJobStore(s *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{store: s, logger: logger_i.NewLogger("JobStore")}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return ragModel.Wrap(ragModel.ErrPersistence, "save job", err)
	}
	if err := s.store.Set(ctx, jobKey(job.Id), data, config.RedisJobStoreTTL); err != nil {
		return ragModel.Wrap(ragModel.ErrPersistence, "save job", err)
	}
	s.logger.FromContext(ctx).Debug("Saved job", "jobId", job.Id, "status", job.Status, "step", job.CurrentStep)
	return nil
}

// GetJob reports false for a missing key and for any read or decode failure, which is logged.
func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	log := s.logger.FromContext(ctx).With("jobId", jobId)
	val, err := s.store.Get(ctx, jobKey(jobId))
	switch {
	case s.store.IsNil(err):
		return jobModel.Job{}, false
	case err != nil:
		log.Error("Error reading job", "error", err)
		return jobModel.Job{}, false
	}

	var job jobModel.Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("Stored job is not valid JSON", "error", err)
		return jobModel.Job{}, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if _, err := s.store.Del(ctx, jobKey(jobID)); err != nil {
		s.logger.FromContext(ctx).Error("Error deleting job", "jobId", jobID, "error", err)
	}
}
