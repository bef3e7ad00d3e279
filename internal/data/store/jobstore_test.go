package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/data/redisStore"
	"github.com/akolanti/GoRAG/internal/data/store"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redisStore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redisStore.NewTestStore(client)
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr, internalStore := newMiniRedis(t)
	jobStore := store.NewRedisJobStore(internalStore)

	ctx := logger_i.WithTraceId(context.Background(), "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:        jobID,
		ProjectId: "p1",
		JobType:   jobModel.JobTypeQuery,
		Status:    jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			Question: "How do I mock Redis?",
		},
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := jobStore.SaveJob(ctx, testJob); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}
		if retrievedJob.JobPayload.Question != testJob.JobPayload.Question {
			t.Errorf("Data mismatch! Got %s, want %s",
				retrievedJob.JobPayload.Question, testJob.JobPayload.Question)
		}
		if retrievedJob.Error != nil {
			t.Errorf("expected no error, got %+v", retrievedJob.Error)
		}
		if ttl := mr.TTL("job:" + jobID); ttl <= 0 {
			t.Errorf("expected job key to expire, ttl %v", ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)
		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	_, internalStore := newMiniRedis(t)
	jobStore := store.NewRedisJobStore(internalStore)

	ctx := logger_i.WithTraceId(context.Background(), "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("job lost under concurrent writes")
	}
}

func TestInMemoryJobStore(t *testing.T) {
	s := store.InitInMemoryJobStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, jobModel.Job{Id: "a", Status: jobModel.JobStatusQueued})

	got, ok := s.GetJob(ctx, "a")
	if !ok || got.Status != jobModel.JobStatusQueued {
		t.Fatalf("got %+v, %v", got, ok)
	}
	s.DeleteJob(ctx, "a")
	if _, ok := s.GetJob(ctx, "a"); ok {
		t.Error("job not deleted")
	}
}

func TestInMemoryJobStore_Expiry(t *testing.T) {
	s := store.InitInMemoryJobStore()
	ctx := context.Background()
	clock := time.Unix(1000, 0)
	store.SetJobStoreClock(s, func() time.Time { return clock })

	_ = s.SaveJob(ctx, jobModel.Job{Id: "old"})
	clock = clock.Add(config.RedisJobStoreTTL + time.Second)
	if _, ok := s.GetJob(ctx, "old"); ok {
		t.Error("expired job still readable")
	}

	_ = s.SaveJob(ctx, jobModel.Job{Id: "new"})
	if _, ok := s.GetJob(ctx, "new"); !ok {
		t.Error("fresh job missing")
	}
}
