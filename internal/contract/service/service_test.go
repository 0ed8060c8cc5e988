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
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	"github.com/smallbiznis/residence/internal/contract/repository"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

func testNode(t *testing.T) *snowflake.Node {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(3)
		require.NoError(t, err)
		node = n
	})
	return node
}

type fixture struct {
	svc   contractdomain.Service
	audit auditdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t, &contractdomain.Contract{}, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: testNode(t),
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    testNode(t),
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: auditSvc,
	})
	return fixture{svc: svc, audit: auditSvc, db: db, clock: clk}
}

func newRequest(studentID snowflake.ID, room string) contractdomain.CreateRequest {
	return contractdomain.CreateRequest{
		StudentID:       studentID,
		StudentName:     "Jane Doe",
		StudentEmail:    "jane@example.com",
		ResidenceID:     1,
		ResidenceName:   "North Hall",
		RoomNumber:      room,
		StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		MonthlyValue:    450,
		MonthlyKwhLimit: 100,
		ActorID:         "admin-1",
	}
}

func (f fixture) actions(t *testing.T, contractID snowflake.ID) []auditdomain.Action {
	t.Helper()
	res, err := f.audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		ResidenceID: 1,
		ContractID:  &contractID,
	})
	require.NoError(t, err)
	out := make([]auditdomain.Action, 0, len(res.AuditLogs))
	for _, entry := range res.AuditLogs {
		out = append(out, entry.Action)
	}
	return out
}

func TestCreateActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract, err := f.svc.CreateActive(ctx, newRequest(42, "101"))
	require.NoError(t, err)
	assert.Equal(t, contractdomain.ContractStatusActive, contract.Status)
	assert.Equal(t, "admin-1", contract.CreatedBy)

	found, err := f.svc.GetActiveByRoom(ctx, 1, " 101 ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, contract.ID, found.ID)

	assert.Equal(t, []auditdomain.Action{auditdomain.ActionContractCreated}, f.actions(t, contract.ID))
}

func TestCreateActiveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*contractdomain.CreateRequest)
		want   error
	}{
		"missing student": {func(r *contractdomain.CreateRequest) { r.StudentID = 0 }, contractdomain.ErrInvalidStudent},
		"bad email":       {func(r *contractdomain.CreateRequest) { r.StudentEmail = "nope" }, contractdomain.ErrInvalidStudentEmail},
		"missing room":    {func(r *contractdomain.CreateRequest) { r.RoomNumber = " " }, contractdomain.ErrInvalidRoomNumber},
		"end before start": {func(r *contractdomain.CreateRequest) {
			r.EndDate = r.StartDate
		}, contractdomain.ErrInvalidPeriod},
		"negative limit": {func(r *contractdomain.CreateRequest) { r.MonthlyKwhLimit = -1 }, contractdomain.ErrInvalidKwhLimit},
		"missing actor":  {func(r *contractdomain.CreateRequest) { r.ActorID = "" }, contractdomain.ErrInvalidActor},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := newRequest(7, "202")
			tc.mutate(&req)
			_, err := f.svc.CreateActive(ctx, req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domainerr.ErrValidation)
		})
	}
}

func TestSecondActiveContractConflictsUntilTerminated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateActive(ctx, newRequest(42, "101"))
	require.NoError(t, err)

	_, err = f.svc.CreateActive(ctx, newRequest(42, "102"))
	assert.ErrorIs(t, err, contractdomain.ErrActiveContractExists)
	assert.ErrorIs(t, err, domainerr.ErrConflict)

	res, err := f.svc.Terminate(ctx, first.ID, contractdomain.TerminateRequest{Reason: "moved out", ActorID: "admin-1"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyTerminated)
	assert.Equal(t, contractdomain.ContractStatusTerminated, res.Contract.Status)
	require.NotNil(t, res.Contract.TerminatedAt)

	second, err := f.svc.CreateActive(ctx, newRequest(42, "102"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := f.svc.GetActiveByStudent(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestTerminateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract, err := f.svc.CreateActive(ctx, newRequest(42, "101"))
	require.NoError(t, err)

	_, err = f.svc.Terminate(ctx, contract.ID, contractdomain.TerminateRequest{ActorID: "admin-1"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	res, err := f.svc.Terminate(ctx, contract.ID, contractdomain.TerminateRequest{ActorID: "admin-2"})
	require.NoError(t, err)
	assert.True(t, res.AlreadyTerminated)
	assert.Equal(t, "admin-1", res.Contract.UpdatedBy)

	assert.ElementsMatch(t, []auditdomain.Action{
		auditdomain.ActionContractCreated,
		auditdomain.ActionContractTerminated,
	}, f.actions(t, contract.ID))

	_, err = f.svc.Terminate(ctx, 999, contractdomain.TerminateRequest{ActorID: "admin-1"})
	assert.ErrorIs(t, err, contractdomain.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract, err := f.svc.CreateActive(ctx, newRequest(42, "101"))
	require.NoError(t, err)

	limit := 150.0
	room := "305"
	updated, err := f.svc.Update(ctx, contract.ID, contractdomain.UpdateRequest{
		MonthlyKwhLimit: &limit,
		RoomNumber:      &room,
		ActorID:         "admin-2",
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.MonthlyKwhLimit)
	assert.Equal(t, "305", updated.RoomNumber)
	assert.Equal(t, "admin-2", updated.UpdatedBy)

	stored, err := f.svc.Get(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stored.MonthlyKwhLimit)

	badEnd := contract.StartDate.Add(-24 * time.Hour)
	_, err = f.svc.Update(ctx, contract.ID, contractdomain.UpdateRequest{EndDate: &badEnd, ActorID: "admin-2"})
	assert.ErrorIs(t, err, contractdomain.ErrInvalidPeriod)

	_, err = f.svc.Terminate(ctx, contract.ID, contractdomain.TerminateRequest{ActorID: "admin-1"})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, contract.ID, contractdomain.UpdateRequest{MonthlyKwhLimit: &limit, ActorID: "admin-2"})
	assert.ErrorIs(t, err, contractdomain.ErrContractNotActive)

	assert.ElementsMatch(t, []auditdomain.Action{
		auditdomain.ActionContractCreated,
		auditdomain.ActionContractUpdated,
		auditdomain.ActionContractTerminated,
	}, f.actions(t, contract.ID))
}

func TestListEnrichesAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiring := newRequest(1, "101")
	expiring.EndDate = time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateActive(ctx, expiring)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.CreateActive(ctx, newRequest(2, "102"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.CreateActive(ctx, newRequest(3, "103"))
	require.NoError(t, err)

	page, err := f.svc.List(ctx, contractdomain.ListRequest{
		Pagination:  pagination.Pagination{PageSize: 2},
		ResidenceID: 1,
	})
	require.NoError(t, err)
	require.Len(t, page.Contracts, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, snowflake.ID(3), page.Contracts[0].StudentID)

	rest, err := f.svc.List(ctx, contractdomain.ListRequest{
		Pagination:  pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken},
		ResidenceID: 1,
	})
	require.NoError(t, err)
	require.Len(t, rest.Contracts, 1)
	assert.False(t, rest.HasMore)
	assert.Equal(t, snowflake.ID(1), rest.Contracts[0].StudentID)
	assert.True(t, rest.Contracts[0].IsExpiringSoon)
	assert.Equal(t, 20, rest.Contracts[0].DaysRemaining)

	_, err = f.svc.List(ctx, contractdomain.ListRequest{ResidenceID: 1, Status: "paused"})
	assert.ErrorIs(t, err, contractdomain.ErrInvalidStatus)
}
