package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	"github.com/smallbiznis/residence/internal/acceptance/repository"
	"github.com/smallbiznis/residence/internal/clock"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (acceptancedomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &acceptancedomain.RegulationAcceptance{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), db, clk
}

func recordReq(student, regulation snowflake.ID, version string) acceptancedomain.RecordRequest {
	return acceptancedomain.RecordRequest{
		StudentID:         student,
		RegulationID:      regulation,
		RegulationVersion: version,
		ResidenceID:       1,
		ClientIP:          "192.168.0.10",
	}
}

func TestRecordThenHasAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.HasAccepted(ctx, 5, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	acceptance, err := svc.Record(ctx, recordReq(5, 50, "1.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", acceptance.RegulationVersion)
	require.NotNil(t, acceptance.ClientIP)
	assert.Equal(t, "192.168.0.10", *acceptance.ClientIP)

	ok, err = svc.HasAccepted(ctx, 5, 50)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAccepted(ctx, 5, 51)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordIsIdempotent(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, recordReq(5, 50, "1.0"))
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	second, err := svc.Record(ctx, recordReq(5, 50, "1.0"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.AcceptedAt.Equal(second.AcceptedAt))

	var count int64
	require.NoError(t, db.Model(&acceptancedomain.RegulationAcceptance{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, recordReq(5, 50, "1.0"))
	require.NoError(t, err)
	clk.Advance(48 * time.Hour)
	_, err = svc.Record(ctx, recordReq(5, 60, "2.0"))
	require.NoError(t, err)
	_, err = svc.Record(ctx, recordReq(6, 60, "2.0"))
	require.NoError(t, err)

	history, err := svc.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2.0", history[0].RegulationVersion)
	assert.Equal(t, "1.0", history[1].RegulationVersion)

	empty, err := svc.History(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, recordReq(0, 50, "1.0"))
	assert.ErrorIs(t, err, acceptancedomain.ErrInvalidStudent)

	_, err = svc.Record(ctx, recordReq(5, 50, ""))
	assert.ErrorIs(t, err, acceptancedomain.ErrInvalidVersion)

	_, err = svc.Get(ctx, 5, 50)
	assert.ErrorIs(t, err, acceptancedomain.ErrNotFound)
}
