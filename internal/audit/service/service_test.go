package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/audit/repository"
	"github.com/smallbiznis/residence/internal/clock"
	obscontext "github.com/smallbiznis/residence/internal/observability/context"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &auditdomain.AuditLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func TestRecordMasksDetailsAndCapturesClient(t *testing.T) {
	svc, db, _ := newTestService(t)
	residenceID := snowflake.ID(100)
	contractID := snowflake.ID(200)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithClient(ctx, obscontext.Client{IPAddress: "10.1.1.1", UserAgent: "test-agent"})

	err := svc.Record(ctx, auditdomain.Entry{
		ResidenceID: residenceID,
		ContractID:  &contractID,
		Action:      auditdomain.ActionContractCreated,
		ActorID:     "admin-1",
		Details:     map[string]any{"student_email": "jane@example.com"},
	})
	require.NoError(t, err)

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, auditdomain.ActionContractCreated, stored.Action)
	assert.Equal(t, "admin-1", stored.ActorID)
	require.NotNil(t, stored.ContractID)
	assert.Equal(t, contractID, *stored.ContractID)
	assert.Equal(t, "j****@example.com", stored.Details["student_email"])
	assert.Equal(t, "req-9", stored.Details["request_id"])
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "10.1.1.1", *stored.IPAddress)
}

func TestRecordValidatesEntry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Record(ctx, auditdomain.Entry{Action: auditdomain.ActionContractCreated, ActorID: "a"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidResidence)

	err = svc.Record(ctx, auditdomain.Entry{ResidenceID: 1, Action: "contract.deleted", ActorID: "a"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(ctx, auditdomain.Entry{ResidenceID: 1, Action: auditdomain.ActionContractCreated, ActorID: " "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidActor)
}

func TestRecordTxRollsBackWithCaller(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID: 1,
			Action:      auditdomain.ActionRegulationActivated,
			ActorID:     "admin-1",
		}))
		return assert.AnError
	})

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListNewestFirstWithFilters(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	residenceID := snowflake.ID(1)
	regulationID := snowflake.ID(7)

	require.NoError(t, svc.Record(ctx, auditdomain.Entry{ResidenceID: residenceID, RegulationID: &regulationID, Action: auditdomain.ActionRegulationCreated, ActorID: "a"}))
	clk.Advance(time.Minute)
	require.NoError(t, svc.Record(ctx, auditdomain.Entry{ResidenceID: residenceID, RegulationID: &regulationID, Action: auditdomain.ActionRegulationActivated, ActorID: "a"}))
	clk.Advance(time.Minute)
	require.NoError(t, svc.Record(ctx, auditdomain.Entry{ResidenceID: residenceID, Action: auditdomain.ActionContractCreated, ActorID: "a"}))
	require.NoError(t, svc.Record(ctx, auditdomain.Entry{ResidenceID: 2, Action: auditdomain.ActionContractCreated, ActorID: "a"}))

	all, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ResidenceID: residenceID})
	require.NoError(t, err)
	require.Len(t, all.AuditLogs, 3)
	assert.Equal(t, auditdomain.ActionContractCreated, all.AuditLogs[0].Action)
	assert.Equal(t, auditdomain.ActionRegulationCreated, all.AuditLogs[2].Action)
	assert.False(t, all.HasMore)

	byRegulation, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ResidenceID: residenceID, RegulationID: &regulationID})
	require.NoError(t, err)
	assert.Len(t, byRegulation.AuditLogs, 2)

	firstPage, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ResidenceID: residenceID, Action: auditdomain.ActionRegulationActivated})
	require.NoError(t, err)
	assert.Len(t, firstPage.AuditLogs, 1)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{ResidenceID: residenceID, Action: "bogus"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}
