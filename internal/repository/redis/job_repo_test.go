package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func newJob(createdAt time.Time, items ...string) *domain.Job {
	id, _ := uuid.NewV7()
	return &domain.Job{
		ID:          id,
		Status:      domain.StatusPending,
		Items:       items,
		AccessToken: "tok",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func statusPtr(s domain.JobStatus) *domain.JobStatus { return &s }

func TestRedisJobRepo_SaveGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())
	ctx := context.Background()

	job := newJob(time.Now().UTC(), "a@example.com", "b@example.com")
	require.NoError(t, repo.Save(ctx, job))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, job.Items, got.Items)
	assert.Equal(t, "tok", got.AccessToken)
}

func TestRedisJobRepo_GetMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRedisJobRepo_UpdateMerges(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())
	ctx := context.Background()

	job := newJob(time.Now().UTC(), "a@example.com", "b@example.com")
	require.NoError(t, repo.Save(ctx, job))

	_, err := repo.Update(ctx, job.ID, domain.JobPatch{Status: statusPtr(domain.StatusProcessing)})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, job.ID, domain.JobPatch{
		Results: []domain.Verdict{{Email: "a@example.com", State: domain.StateDeliverable}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)
	assert.Len(t, updated.Results, 1)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken, "untouched fields survive the merge")
	assert.Len(t, got.Results, 1)
}

func TestRedisJobRepo_UpdateRejectsRegression(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())
	ctx := context.Background()

	job := newJob(time.Now().UTC(), "a@example.com")
	require.NoError(t, repo.Save(ctx, job))
	_, err := repo.Update(ctx, job.ID, domain.JobPatch{Status: statusPtr(domain.StatusFailed)})
	require.NoError(t, err)

	_, err = repo.Update(ctx, job.ID, domain.JobPatch{Status: statusPtr(domain.StatusProcessing)})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRedisJobRepo_UpdateMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())

	_, err := repo.Update(context.Background(), uuid.New(), domain.JobPatch{})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRedisJobRepo_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewRedisJobRepository(client, time.Hour, zap.NewNop())
	ctx := context.Background()

	job := newJob(time.Now().UTC(), "a@example.com")
	require.NoError(t, repo.Save(ctx, job))
	_, err := repo.Update(ctx, job.ID, domain.JobPatch{Status: statusPtr(domain.StatusProcessing)})
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL(jobKey(job.ID)), "update keeps the original expiry")

	mr.FastForward(2 * time.Hour)
	_, err = repo.Get(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRedisJobRepo_NoTTLByDefault(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())

	job := newJob(time.Now().UTC(), "a@example.com")
	require.NoError(t, repo.Save(context.Background(), job))
	assert.Equal(t, time.Duration(0), mr.TTL(jobKey(job.ID)))
}

func TestRedisJobRepo_DeleteAndIndex(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	old := newJob(base, "a@example.com")
	newer := newJob(base.Add(time.Hour), "b@example.com")
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, newer))

	ids, err := repo.ListCreatedBefore(ctx, base.Add(30*time.Minute), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{old.ID}, ids)

	ids, err = repo.ListCreatedBefore(ctx, base.Add(2*time.Hour), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newer.ID}, ids)

	repo.Delete(ctx, old.ID)
	_, err = repo.Get(ctx, old.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	ids, err = repo.ListCreatedBefore(ctx, base.Add(2*time.Hour), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newer.ID}, ids)
}

func TestRedisJobRepo_StoreUnavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewRedisJobRepository(client, 0, zap.NewNop())
	mr.Close()

	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	// Delete swallows the failure.
	repo.Delete(context.Background(), uuid.New())
}

func TestRedisIdempotency_AcquireOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	ok, err := store.AcquireLock(ctx, id, "worker-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(ctx, id, "worker-b")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire is a duplicate")

	require.NoError(t, store.ReleaseLock(ctx, id, "worker-a"))

	ok, err = store.AcquireLock(ctx, id, "worker-b")
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be taken again")
}

func TestRedisIdempotency_CrashedHolderExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisIdempotencyStore(client, 2*time.Minute)
	ctx := context.Background()
	id := uuid.New()

	ok, err := store.AcquireLock(ctx, id, "crashed")
	require.NoError(t, err)
	require.True(t, ok)

	// Redelivery while the crashed holder's lock is live.
	ok, err = store.AcquireLock(ctx, id, "redelivery")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2*time.Minute + time.Second)

	ok, err = store.AcquireLock(ctx, id, "redelivery")
	require.NoError(t, err)
	assert.True(t, ok, "the lock frees itself one ttl after the holder stops refreshing")
}

func TestRedisIdempotency_RefreshAndReleaseCheckOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	ok, err := store.AcquireLock(ctx, id, "worker-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(50 * time.Second)
	held, err := store.RefreshLock(ctx, id, "worker-a")
	require.NoError(t, err)
	assert.True(t, held)
	mr.FastForward(50 * time.Second)
	assert.True(t, mr.Exists(lockKeyPrefix+id.String()), "refresh extends the ttl")

	held, err = store.RefreshLock(ctx, id, "worker-b")
	require.NoError(t, err)
	assert.False(t, held, "only the holder can refresh")

	require.NoError(t, store.ReleaseLock(ctx, id, "worker-b"))
	assert.True(t, mr.Exists(lockKeyPrefix+id.String()), "only the holder can release")

	require.NoError(t, store.ReleaseLock(ctx, id, "worker-a"))
	assert.False(t, mr.Exists(lockKeyPrefix+id.String()))
}
