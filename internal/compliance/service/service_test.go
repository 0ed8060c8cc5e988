package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	acceptancerepository "github.com/smallbiznis/residence/internal/acceptance/repository"
	acceptanceservice "github.com/smallbiznis/residence/internal/acceptance/service"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	auditrepository "github.com/smallbiznis/residence/internal/audit/repository"
	auditservice "github.com/smallbiznis/residence/internal/audit/service"
	"github.com/smallbiznis/residence/internal/clock"
	compliancedomain "github.com/smallbiznis/residence/internal/compliance/domain"
	"github.com/smallbiznis/residence/internal/config"
	"github.com/smallbiznis/residence/internal/providers/pdf"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	regulationrepository "github.com/smallbiznis/residence/internal/regulation/repository"
	regulationservice "github.com/smallbiznis/residence/internal/regulation/service"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
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
		n, err := snowflake.NewNode(6)
		require.NoError(t, err)
		node = n
	})
	return node
}

type fixture struct {
	svc         compliancedomain.Service
	regulations regulationdomain.Service
	clock       *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t,
		&regulationdomain.Regulation{},
		&acceptancedomain.RegulationAcceptance{},
		&auditdomain.AuditLog{},
	)
	clk := clock.NewFakeClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: testNode(t),
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	regulations := regulationservice.NewService(regulationservice.Params{
		DB:       db,
		Log:      log,
		GenID:    testNode(t),
		Clock:    clk,
		Repo:     regulationrepository.Provide(),
		AuditSvc: auditSvc,
	})
	acceptances := acceptanceservice.NewService(acceptanceservice.Params{
		DB:    db,
		Log:   log,
		GenID: testNode(t),
		Clock: clk,
		Repo:  acceptancerepository.Provide(),
	})
	svc := NewService(Params{
		Config:        config.Config{RegulationFileBaseURL: "https://files.example.com"},
		Log:           log,
		Regulations:   regulations,
		Acceptances:   acceptances,
		PDF:           pdf.New(),
		Notifications: config.NewStaticNotificationConfigHolder(config.DefaultNotificationConfig()),
	})
	return fixture{svc: svc, regulations: regulations, clock: clk}
}

func (f fixture) regulation(t *testing.T, residenceID snowflake.ID, version string, active bool) *regulationdomain.Regulation {
	t.Helper()
	reg, err := f.regulations.Create(context.Background(), regulationdomain.CreateRequest{
		ResidenceID: residenceID,
		Version:     version,
		IsActive:    active,
		ActorID:     "admin-1",
	})
	require.NoError(t, err)
	return reg
}

func TestCheckWithoutRegulationIsOpen(t *testing.T) {
	f := newFixture(t)
	f.regulation(t, 1, "1.0", false)

	status, err := f.svc.Check(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestAcceptanceDoesNotCarryAcrossVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const student, residence = snowflake.ID(42), snowflake.ID(1)

	v1 := f.regulation(t, residence, "1.0", true)

	status, err := f.svc.Check(ctx, student, residence)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, v1.ID, status.Regulation.ID)
	assert.False(t, status.HasAccepted)
	assert.Equal(t, "https://files.example.com/regulations/1/1-0.pdf", status.DocumentURL)

	_, err = f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: student, RegulationID: v1.ID, ClientIP: "10.0.0.1"})
	require.NoError(t, err)

	status, err = f.svc.Check(ctx, student, residence)
	require.NoError(t, err)
	assert.True(t, status.HasAccepted)

	v2 := f.regulation(t, residence, "2.0", false)
	_, err = f.regulations.SetActive(ctx, v2.ID, "admin-1")
	require.NoError(t, err)

	status, err = f.svc.Check(ctx, student, residence)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, v2.ID, status.Regulation.ID)
	assert.Equal(t, "2.0", status.Regulation.Version)
	assert.False(t, status.HasAccepted)
}

func TestAcceptOnlyActiveRegulation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1 := f.regulation(t, 1, "1.0", true)
	draft := f.regulation(t, 1, "2.0", false)

	_, err := f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: 42, RegulationID: draft.ID})
	assert.ErrorIs(t, err, compliancedomain.ErrRegulationNotActive)
	assert.ErrorIs(t, err, domainerr.ErrConflict)

	first, err := f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: 42, RegulationID: v1.ID})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	again, err := f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: 42, RegulationID: v1.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, first.AcceptedAt.Equal(again.AcceptedAt))

	_, err = f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: 42, RegulationID: 999})
	assert.ErrorIs(t, err, regulationdomain.ErrNotFound)
}

func TestCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := f.regulation(t, 1, "1.0", true)

	_, err := f.svc.Certificate(ctx, compliancedomain.CertificateRequest{StudentID: 42, RegulationID: v1.ID})
	assert.ErrorIs(t, err, compliancedomain.ErrNotAccepted)

	_, err = f.svc.Accept(ctx, compliancedomain.AcceptRequest{StudentID: 42, RegulationID: v1.ID})
	require.NoError(t, err)

	r, err := f.svc.Certificate(ctx, compliancedomain.CertificateRequest{StudentID: 42, StudentName: "Jane", RegulationID: v1.ID})
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestCheckValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Check(context.Background(), 0, 1)
	assert.ErrorIs(t, err, compliancedomain.ErrInvalidStudent)
	_, err = f.svc.Check(context.Background(), 1, 0)
	assert.ErrorIs(t, err, compliancedomain.ErrInvalidResidence)
}
