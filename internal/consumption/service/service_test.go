package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	auditrepository "github.com/smallbiznis/residence/internal/audit/repository"
	auditservice "github.com/smallbiznis/residence/internal/audit/service"
	"github.com/smallbiznis/residence/internal/clock"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	"github.com/smallbiznis/residence/internal/consumption/repository"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	contractrepository "github.com/smallbiznis/residence/internal/contract/repository"
	contractservice "github.com/smallbiznis/residence/internal/contract/service"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

func testNode(t *testing.T) *snowflake.Node {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(4)
		require.NoError(t, err)
		node = n
	})
	return node
}

type fixture struct {
	svc       consumptiondomain.Service
	contracts contractdomain.Service
	audit     auditdomain.Service
	clock     *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t,
		&consumptiondomain.ConsumptionRecord{},
		&contractdomain.Contract{},
		&auditdomain.AuditLog{},
	)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: testNode(t),
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	contracts := contractservice.NewService(contractservice.Params{
		DB:       db,
		Log:      log,
		GenID:    testNode(t),
		Clock:    clk,
		Repo:     contractrepository.Provide(),
		AuditSvc: auditSvc,
	})
	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     testNode(t),
		Clock:     clk,
		Repo:      repository.Provide(),
		Contracts: NewContractResolver(contracts),
		AuditSvc:  auditSvc,
	})
	return fixture{svc: svc, contracts: contracts, audit: auditSvc, clock: clk}
}

func (f fixture) contract(t *testing.T, residenceID snowflake.ID, room string, limit float64) *contractdomain.Contract {
	t.Helper()
	c, err := f.contracts.CreateActive(context.Background(), contractdomain.CreateRequest{
		StudentID:       42,
		StudentName:     "Jane Doe",
		StudentEmail:    "jane@example.com",
		ResidenceID:     residenceID,
		RoomNumber:      room,
		StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		MonthlyValue:    450,
		MonthlyKwhLimit: limit,
		ActorID:         "admin-1",
	})
	require.NoError(t, err)
	return c
}

func createReq(residenceID snowflake.ID, room string, month int, kwh float64) consumptiondomain.CreateRequest {
	return consumptiondomain.CreateRequest{
		Reading: consumptiondomain.Reading{
			ResidenceID:    residenceID,
			RoomNumber:     room,
			BillingMonth:   month,
			BillingYear:    2025,
			ConsumptionKwh: kwh,
		},
		ActorID: "admin-1",
	}
}

func TestCreateResolvesActiveContractOfRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, 1, "101", 100)

	record, err := f.svc.Create(ctx, createReq(1, "101", 1, 120))
	require.NoError(t, err)

	assert.Equal(t, "2025-01", record.BillingPeriodKey)
	assert.True(t, record.ExceedsLimit)
	require.NotNil(t, record.ExcessKwh)
	assert.Equal(t, 20.0, *record.ExcessKwh)
	require.NotNil(t, record.ContractID)
	assert.Equal(t, contract.ID, *record.ContractID)
	require.NotNil(t, record.StudentEmail)
	assert.Equal(t, "jane@example.com", *record.StudentEmail)
	assert.False(t, record.NotificationSent)

	stored, err := f.svc.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ExceedsLimit, stored.ExceedsLimit)

	logs, err := f.audit.List(ctx, auditdomain.ListAuditLogRequest{
		ResidenceID: 1,
		Action:      auditdomain.ActionConsumptionRecorded,
	})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
	require.NotNil(t, logs.AuditLogs[0].ConsumptionRecordID)
	assert.Equal(t, record.ID, *logs.AuditLogs[0].ConsumptionRecordID)
}

func TestCreateWithoutContractAppliesNoLimit(t *testing.T) {
	f := newFixture(t)

	record, err := f.svc.Create(context.Background(), createReq(1, "999", 1, 5000))
	require.NoError(t, err)
	assert.False(t, record.ExceedsLimit)
	assert.Nil(t, record.ExcessKwh)
	assert.Nil(t, record.ContractID)
	assert.Nil(t, record.ContractMonthlyLimit)
}

func TestCreateKeepsSnapshotAfterContractChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, 1, "101", 100)

	record, err := f.svc.Create(ctx, createReq(1, "101", 1, 90))
	require.NoError(t, err)

	limit := 50.0
	_, err = f.contracts.Update(ctx, contract.ID, contractdomain.UpdateRequest{MonthlyKwhLimit: &limit, ActorID: "admin-1"})
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ContractMonthlyLimit)
	assert.Equal(t, 100.0, *stored.ContractMonthlyLimit)
	assert.False(t, stored.ExceedsLimit)
}

func TestCreateExplicitContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, 1, "101", 100)

	req := createReq(1, "101", 1, 80)
	req.ContractID = &contract.ID
	record, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, contract.ID, *record.ContractID)

	missing := snowflake.ID(12345)
	req = createReq(1, "101", 2, 80)
	req.ContractID = &missing
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, consumptiondomain.ErrContractNotFound)

	req = createReq(2, "101", 2, 80)
	req.ContractID = &contract.ID
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, consumptiondomain.ErrContractMismatch)
}

func TestCreateRejectsDuplicatePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, createReq(1, "101", 1, 80))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, createReq(1, "101", 1, 95))
	assert.ErrorIs(t, err, consumptiondomain.ErrDuplicatePeriod)
	assert.ErrorIs(t, err, domainerr.ErrConflict)

	_, err = f.svc.Create(ctx, createReq(1, "101", 2, 95))
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, createReq(1, "101", 13, 10))
	assert.ErrorIs(t, err, consumptiondomain.ErrInvalidBillingMonth)

	_, err = f.svc.Create(ctx, createReq(1, "101", 1, -1))
	assert.ErrorIs(t, err, consumptiondomain.ErrInvalidConsumption)

	_, err = f.svc.Create(ctx, createReq(1, " ", 1, 10))
	assert.ErrorIs(t, err, consumptiondomain.ErrInvalidRoomNumber)

	req := createReq(1, "101", 1, 10)
	req.ActorID = ""
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, consumptiondomain.ErrInvalidActor)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract(t, 1, "101", 100)

	_, err := f.svc.Create(ctx, createReq(1, "101", 1, 120))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Create(ctx, createReq(1, "101", 2, 80))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Create(ctx, createReq(1, "102", 1, 300))
	require.NoError(t, err)

	all, err := f.svc.List(ctx, consumptiondomain.ListRequest{ResidenceID: 1})
	require.NoError(t, err)
	assert.Len(t, all.Records, 3)

	exceeding, err := f.svc.List(ctx, consumptiondomain.ListRequest{ResidenceID: 1, ExceedsOnly: true})
	require.NoError(t, err)
	require.Len(t, exceeding.Records, 1)
	assert.Equal(t, "101", exceeding.Records[0].RoomNumber)

	january, err := f.svc.List(ctx, consumptiondomain.ListRequest{
		Pagination:       pagination.Pagination{PageSize: 1},
		ResidenceID:      1,
		BillingPeriodKey: "2025-01",
	})
	require.NoError(t, err)
	require.Len(t, january.Records, 1)
	assert.Equal(t, "102", january.Records[0].RoomNumber)
	assert.True(t, january.HasMore)

	_, err = f.svc.List(ctx, consumptiondomain.ListRequest{ResidenceID: 1, BillingPeriodKey: "jan"})
	assert.ErrorIs(t, err, consumptiondomain.ErrInvalidBillingPeriod)
}
