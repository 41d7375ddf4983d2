package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/wastebill/internal/authorization"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/internal/health"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	"github.com/smallbiznis/wastebill/internal/observability"
	obsmiddleware "github.com/smallbiznis/wastebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/wastebill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/internal/ratelimit"
	reportdomain "github.com/smallbiznis/wastebill/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	authzSvc    authorization.Service
	customerSvc customerdomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
	mpesaSvc    mpesadomain.Service
	reportSvc   reportdomain.Service
	health      *health.Checker
	limiter     *ratelimit.CallbackLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	AuthzSvc    authorization.Service
	CustomerSvc customerdomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
	MpesaSvc    mpesadomain.Service
	ReportSvc   reportdomain.Service
	Health      *health.Checker            `optional:"true"`
	Limiter     *ratelimit.CallbackLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		authzSvc:    p.AuthzSvc,
		customerSvc: p.CustomerSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
		mpesaSvc:    p.MpesaSvc,
		reportSvc:   p.ReportSvc,
		health:      p.Health,
		limiter:     p.Limiter,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health/ready", s.Ready)

	api := s.engine.Group("/api")

	mpesa := api.Group("/mpesa")
	mpesa.POST("/confirmation", s.CallbackRateLimit(), s.MpesaConfirmation)
	mpesa.POST("/validation", s.CallbackRateLimit(), s.MpesaValidation)

	secured := api.Group("", s.WithActorRole())
	secured.GET("/me/capabilities", s.Capabilities)

	secured.POST("/customers", s.RequireCapability(authorization.ResourceCustomer, authorization.ActionCreate), s.CreateCustomer)
	secured.GET("/customers", s.RequireCapability(authorization.ResourceCustomer, authorization.ActionRead), s.ListCustomers)
	secured.GET("/customers/:id", s.RequireCapability(authorization.ResourceCustomer, authorization.ActionRead), s.GetCustomerByID)
	secured.PUT("/customers/:id", s.RequireCapability(authorization.ResourceCustomer, authorization.ActionUpdate), s.UpdateCustomer)
	secured.PATCH("/customers/:id/status", s.RequireCapability(authorization.ResourceCustomer, authorization.ActionUpdate), s.SetCustomerStatus)
	secured.POST("/customers/:id/collections", s.RequireCapability(authorization.ResourceTrashBagTask, authorization.ActionUpdate), s.MarkCustomerCollected)
	secured.GET("/customers/:id/collections", s.RequireCapability(authorization.ResourceTrashBagTask, authorization.ActionRead), s.ListCustomerCollections)
	secured.GET("/customers/:id/statement", s.RequireCapability(authorization.ResourceReport, authorization.ActionRead), s.CustomerStatement)

	secured.POST("/invoices/issue", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionCreate), s.IssueInvoices)
	secured.POST("/invoices/cancel-latest-system", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionUpdate), s.CancelLatestSystemInvoice)
	secured.POST("/invoices", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionCreate), s.CreateInvoice)
	secured.GET("/invoices", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionRead), s.ListInvoices)
	secured.GET("/invoices/:id", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionRead), s.GetInvoiceByID)
	secured.GET("/invoices/:id/pdf", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionRead), s.DownloadInvoicePDF)
	secured.POST("/invoices/:id/cancel", s.RequireCapability(authorization.ResourceInvoice, authorization.ActionUpdate), s.CancelInvoice)

	secured.POST("/payments/cash", s.RequireCapability(authorization.ResourcePayment, authorization.ActionCreate), s.RecordCashPayment)
	secured.GET("/payments", s.RequireCapability(authorization.ResourcePayment, authorization.ActionRead), s.ListPayments)
	secured.GET("/payments/:id", s.RequireCapability(authorization.ResourcePayment, authorization.ActionRead), s.GetPaymentByID)
	secured.POST("/payments/:id/allocate", s.RequireCapability(authorization.ResourceReceipt, authorization.ActionCreate), s.AllocatePayment)

	secured.GET("/receipts", s.RequireCapability(authorization.ResourceReceipt, authorization.ActionRead), s.ListReceipts)
	secured.GET("/receipts/:id", s.RequireCapability(authorization.ResourceReceipt, authorization.ActionRead), s.GetReceiptByID)
	secured.GET("/receipts/:id/pdf", s.RequireCapability(authorization.ResourceReceipt, authorization.ActionRead), s.DownloadReceiptPDF)

	secured.GET("/mpesa/transactions", s.RequireCapability(authorization.ResourceMpesaTransaction, authorization.ActionRead), s.ListMpesaTransactions)
	secured.GET("/mpesa/transactions/:trans_id", s.RequireCapability(authorization.ResourceMpesaTransaction, authorization.ActionRead), s.GetMpesaTransaction)

	secured.GET("/reports/age-analysis", s.RequireCapability(authorization.ResourceReport, authorization.ActionRead), s.AgeAnalysis)
}

// Ready reports dependency health. Only an unhealthy database fails the probe.
func (s *Server) Ready(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
