package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickforge/affiliate-tracker/utils"
)

func TestInMemoryQueueService(t *testing.T) {
	ctx := context.Background()

	t.Run("PushPopFIFO", func(t *testing.T) {
		q := NewInMemoryQueueService()

		require.NoError(t, q.Push(ctx, utils.JobFraudCheck, map[string]string{"click_id": "first"}, 0))
		require.NoError(t, q.Push(ctx, utils.JobFraudCheck, map[string]string{"click_id": "second"}, 0))

		job, err := q.Pop(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, utils.JobFraudCheck, job.Name)
		assert.Equal(t, "first", job.Data["click_id"])

		job, err = q.Pop(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "second", job.Data["click_id"])
	})

	t.Run("EmptyQueuePopsNil", func(t *testing.T) {
		q := NewInMemoryQueueService()

		job, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("PushJobPreservesAttempts", func(t *testing.T) {
		q := NewInMemoryQueueService()

		original := &Job{
			Name:     utils.JobPostbackConfirm,
			Data:     map[string]string{"conversion_id": "17"},
			Attempts: 2,
		}
		require.NoError(t, q.PushJob(ctx, original, 30))

		job, err := q.Pop(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, 2, job.Attempts)
		assert.Equal(t, "17", job.Data["conversion_id"])
	})

	t.Run("PushResetsAttempts", func(t *testing.T) {
		q := NewInMemoryQueueService()

		require.NoError(t, q.Push(ctx, utils.JobFraudCheck, nil, 0))

		job, err := q.Pop(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Zero(t, job.Attempts)
	})
}
