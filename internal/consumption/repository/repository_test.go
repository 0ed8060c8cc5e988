package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/consumption/domain"
	pkgdb "github.com/smallbiznis/residence/pkg/db"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int64, room, period string) *domain.ConsumptionRecord {
	return &domain.ConsumptionRecord{
		ID:               snowflake.ID(id),
		ResidenceID:      1,
		RoomNumber:       room,
		BillingMonth:     1,
		BillingYear:      2025,
		BillingPeriodKey: period,
		ConsumptionKwh:   80,
		CreatedBy:        "admin-1",
		CreatedAt:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func TestInsertRejectsDuplicatePeriod(t *testing.T) {
	db := dbtest.Open(t, &domain.ConsumptionRecord{})
	r := Provide()
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, db, record(1, "101", "2025-01")))
	require.NoError(t, r.Insert(ctx, db, record(2, "102", "2025-01")))
	require.NoError(t, r.Insert(ctx, db, record(3, "101", "2025-02")))

	err := r.Insert(ctx, db, record(4, "101", "2025-01"))
	require.Error(t, err)
	assert.True(t, pkgdb.IsDuplicateKeyErr(err))
}

func TestMarkNotifiedOnlyOnce(t *testing.T) {
	db := dbtest.Open(t, &domain.ConsumptionRecord{})
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, db, record(1, "101", "2025-01")))

	sentAt := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	ok, err := r.MarkNotified(ctx, db, 1, sentAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MarkNotified(ctx, db, 1, sentAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := r.FindByID(ctx, db, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.NotificationSent)
	require.NotNil(t, stored.NotificationSentAt)
	assert.True(t, sentAt.Equal(*stored.NotificationSentAt))

	missing, err := r.FindByID(ctx, db, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
