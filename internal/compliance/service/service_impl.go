package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	compliancedomain "github.com/smallbiznis/residence/internal/compliance/domain"
	"github.com/smallbiznis/residence/internal/config"
	obsmetrics "github.com/smallbiznis/residence/internal/observability/metrics"
	"github.com/smallbiznis/residence/internal/providers/pdf"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeOpen     = "open"
	outcomeAccepted = "accepted"
	outcomeBlocked  = "blocked"
)

type Params struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	Regulations   regulationdomain.Service
	Acceptances   acceptancedomain.Service
	PDF           pdf.Provider
	Notifications *config.NotificationConfigHolder `optional:"true"`
	Metrics       *obsmetrics.Metrics              `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	fileBaseURL   string
	regulations   regulationdomain.Service
	acceptances   acceptancedomain.Service
	pdf           pdf.Provider
	notifications *config.NotificationConfigHolder
	metrics       *obsmetrics.Metrics
}

func NewService(p Params) compliancedomain.Service {
	return &Service{
		log:           p.Log.Named("compliance.service"),
		fileBaseURL:   p.Config.RegulationFileBaseURL,
		regulations:   p.Regulations,
		acceptances:   p.Acceptances,
		pdf:           p.PDF,
		notifications: p.Notifications,
		metrics:       p.Metrics,
	}
}

func (s *Service) Check(ctx context.Context, studentID, residenceID snowflake.ID) (*compliancedomain.Status, error) {
	if studentID == 0 {
		return nil, compliancedomain.ErrInvalidStudent
	}
	if residenceID == 0 {
		return nil, compliancedomain.ErrInvalidResidence
	}

	active, err := s.regulations.GetActive(ctx, residenceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		s.metrics.RecordGateCheck(ctx, outcomeOpen)
		return nil, nil
	}

	accepted, err := s.acceptances.HasAccepted(ctx, studentID, active.ID)
	if err != nil {
		return nil, err
	}
	if accepted {
		s.metrics.RecordGateCheck(ctx, outcomeAccepted)
	} else {
		s.metrics.RecordGateCheck(ctx, outcomeBlocked)
	}

	return &compliancedomain.Status{
		Regulation:  *active,
		DocumentURL: s.documentURL(active.FileRef),
		HasAccepted: accepted,
	}, nil
}

func (s *Service) Accept(ctx context.Context, req compliancedomain.AcceptRequest) (*acceptancedomain.RegulationAcceptance, error) {
	if req.StudentID == 0 {
		return nil, compliancedomain.ErrInvalidStudent
	}
	if req.RegulationID == 0 {
		return nil, compliancedomain.ErrInvalidRegulation
	}

	regulation, err := s.regulations.Get(ctx, req.RegulationID)
	if err != nil {
		return nil, err
	}
	if !regulation.IsActive {
		// An earlier acceptance of this version stays valid history.
		existing, err := s.acceptances.Get(ctx, req.StudentID, regulation.ID)
		switch {
		case err == nil:
			return existing, nil
		case errors.Is(err, acceptancedomain.ErrNotFound):
			return nil, compliancedomain.ErrRegulationNotActive
		default:
			return nil, err
		}
	}

	return s.acceptances.Record(ctx, acceptancedomain.RecordRequest{
		StudentID:         req.StudentID,
		RegulationID:      regulation.ID,
		RegulationVersion: regulation.Version,
		ResidenceID:       regulation.ResidenceID,
		ClientIP:          req.ClientIP,
		UserAgent:         req.UserAgent,
	})
}

func (s *Service) Certificate(ctx context.Context, req compliancedomain.CertificateRequest) (io.Reader, error) {
	if req.StudentID == 0 {
		return nil, compliancedomain.ErrInvalidStudent
	}
	if req.RegulationID == 0 {
		return nil, compliancedomain.ErrInvalidRegulation
	}

	acceptance, err := s.acceptances.Get(ctx, req.StudentID, req.RegulationID)
	if err != nil {
		if errors.Is(err, acceptancedomain.ErrNotFound) {
			return nil, compliancedomain.ErrNotAccepted
		}
		return nil, err
	}
	regulation, err := s.regulations.Get(ctx, req.RegulationID)
	if err != nil {
		return nil, err
	}

	data := pdf.CertificateData{
		CertificateID:     acceptance.ID.String(),
		StudentID:         acceptance.StudentID.String(),
		StudentName:       strings.TrimSpace(req.StudentName),
		ResidenceID:       acceptance.ResidenceID.String(),
		RegulationVersion: acceptance.RegulationVersion,
		RegulationFileRef: regulation.FileRef,
		AcceptedAt:        acceptance.AcceptedAt,
	}
	if s.notifications != nil {
		data.BrandName = s.notifications.Get().BrandName
	}
	if acceptance.ClientIP != nil {
		data.ClientIP = *acceptance.ClientIP
	}
	return s.pdf.GenerateCertificate(ctx, data)
}

func (s *Service) documentURL(fileRef string) string {
	if s.fileBaseURL == "" || fileRef == "" {
		return ""
	}
	return s.fileBaseURL + "/" + strings.TrimLeft(fileRef, "/")
}
