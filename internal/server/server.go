package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/residence/internal/acceptance"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	"github.com/smallbiznis/residence/internal/audit"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/authorization"
	"github.com/smallbiznis/residence/internal/compliance"
	compliancedomain "github.com/smallbiznis/residence/internal/compliance/domain"
	"github.com/smallbiznis/residence/internal/config"
	"github.com/smallbiznis/residence/internal/consumption"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	"github.com/smallbiznis/residence/internal/contract"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	"github.com/smallbiznis/residence/internal/ingestkey"
	"github.com/smallbiznis/residence/internal/locker"
	"github.com/smallbiznis/residence/internal/notification"
	notificationdomain "github.com/smallbiznis/residence/internal/notification/domain"
	"github.com/smallbiznis/residence/internal/observability"
	obsmiddleware "github.com/smallbiznis/residence/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/residence/internal/observability/metrics"
	obstracing "github.com/smallbiznis/residence/internal/observability/tracing"
	"github.com/smallbiznis/residence/internal/providers"
	"github.com/smallbiznis/residence/internal/ratelimit"
	"github.com/smallbiznis/residence/internal/regulation"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	locker.Module,
	ratelimit.Module,
	providers.Module,
	authorization.Module,
	audit.Module,
	regulation.Module,
	acceptance.Module,
	contract.Module,
	consumption.Module,
	notification.Module,
	compliance.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		SkipPaths:       []string{"/healthz", "/metrics"},
		ErrorClassifier: classifyErrorForLog,
	}))
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	log = log.Named("http.server")
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	ingestKeys     ingestkey.Verifier
	ingestLimiter  ratelimit.IngestLimiter
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	regulationSvc  regulationdomain.Service
	acceptanceSvc  acceptancedomain.Service
	contractSvc    contractdomain.Service
	consumptionSvc consumptiondomain.Service
	notifySvc      notificationdomain.Service
	complianceSvc  compliancedomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	RegulationSvc  regulationdomain.Service
	AcceptanceSvc  acceptancedomain.Service
	ContractSvc    contractdomain.Service
	ConsumptionSvc consumptiondomain.Service
	NotifySvc      notificationdomain.Service
	ComplianceSvc  compliancedomain.Service
	IngestLimiter  ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		ingestKeys:     ingestkey.NewVerifier(p.Cfg.MeterIngestKeyHash),
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		regulationSvc:  p.RegulationSvc,
		acceptanceSvc:  p.AcceptanceSvc,
		contractSvc:    p.ContractSvc,
		consumptionSvc: p.ConsumptionSvc,
		notifySvc:      p.NotifySvc,
		complianceSvc:  p.ComplianceSvc,
		ingestLimiter:  p.IngestLimiter,
	}

	svc.registerAdminRoutes()
	svc.registerStudentRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.ActorRequired())

	// -------- Regulations --------
	admin.POST("/residences/:residenceId/regulations", s.authorize(authorization.ObjectRegulation, authorization.ActionRegulationCreate), s.CreateRegulation)
	admin.GET("/residences/:residenceId/regulations", s.authorize(authorization.ObjectRegulation, authorization.ActionRegulationView), s.ListRegulations)
	admin.POST("/regulations/:id/activate", s.authorize(authorization.ObjectRegulation, authorization.ActionRegulationActivate), s.ActivateRegulation)

	// -------- Audit --------
	admin.GET("/residences/:residenceId/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	// -------- Contracts --------
	admin.POST("/contracts", s.authorize(authorization.ObjectContract, authorization.ActionContractCreate), s.CreateContract)
	admin.GET("/contracts/:id", s.authorize(authorization.ObjectContract, authorization.ActionContractView), s.GetContract)
	admin.PATCH("/contracts/:id", s.authorize(authorization.ObjectContract, authorization.ActionContractUpdate), s.UpdateContract)
	admin.POST("/contracts/:id/terminate", s.authorize(authorization.ObjectContract, authorization.ActionContractTerminate), s.TerminateContract)
	admin.GET("/residences/:residenceId/contracts", s.authorize(authorization.ObjectContract, authorization.ActionContractView), s.ListContracts)

	// -------- Consumption --------
	admin.POST("/consumption-records", s.authorize(authorization.ObjectConsumption, authorization.ActionConsumptionCreate), s.IngestRateLimit(), s.CreateConsumptionRecord)
	admin.GET("/residences/:residenceId/consumption-records", s.authorize(authorization.ObjectConsumption, authorization.ActionConsumptionView), s.ListConsumptionRecords)
	admin.POST("/consumption-records/:id/notify", s.authorize(authorization.ObjectConsumption, authorization.ActionConsumptionNotify), s.NotifyConsumptionRecord)
}

func (s *Server) registerStudentRoutes() {
	student := s.engine.Group("/student")
	student.Use(s.ActorRequired())

	student.GET("/compliance", s.authorize(authorization.ObjectCompliance, authorization.ActionComplianceCheck), s.GetComplianceStatus)
	student.POST("/regulations/:id/accept", s.authorize(authorization.ObjectRegulation, authorization.ActionRegulationAccept), s.AcceptRegulation)
	student.GET("/acceptances", s.authorize(authorization.ObjectAcceptance, authorization.ActionAcceptanceView), s.ListAcceptances)
	student.GET("/regulations/:id/certificate", s.authorize(authorization.ObjectAcceptance, authorization.ActionAcceptanceCertificate), s.DownloadCertificate)
	student.GET("/contract",
		s.authorize(authorization.ObjectContract, authorization.ActionContractViewOwn),
		s.RequireAcceptance(s.studentContractResidence),
		s.GetStudentContract,
	)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
