package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-records-api/api/swagger"
	"github.com/noah-isme/uni-records-api/internal/handler"
	"github.com/noah-isme/uni-records-api/internal/middleware"
	"github.com/noah-isme/uni-records-api/internal/repository"
	"github.com/noah-isme/uni-records-api/internal/scheduler"
	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/pkg/cache"
	"github.com/noah-isme/uni-records-api/pkg/config"
	"github.com/noah-isme/uni-records-api/pkg/database"
	"github.com/noah-isme/uni-records-api/pkg/export"
	"github.com/noah-isme/uni-records-api/pkg/jobs"
	"github.com/noah-isme/uni-records-api/pkg/logger"
	"github.com/noah-isme/uni-records-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/uni-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-records-api/pkg/middleware/requestid"
)

// @title University Records API
// @version 0.1.0
// @description Academic records service: enrollment codes, rollup analytics and student reports
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := repository.EnsureReportView(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to build report view", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	universityRepo := repository.NewUniversityRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	professorRepo := repository.NewProfessorRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	catalogSvc := service.NewCatalogService(universityRepo, departmentRepo, professorRepo, subjectRepo, statsRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, universityRepo, professorRepo, accountRepo, statsRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sequenceRepo, studentRepo, subjectRepo, professorRepo, validate, logr).WithMetrics(metricsSvc)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, validate, logr)
	accountSvc := service.NewAccountService(accountRepo, studentRepo, validate, logr, service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	statsSvc := service.NewStatsService(reportRepo, cacheRepo, cfg.Stats.CacheTTL, logr)

	var transport mail.Transport
	if cfg.Mail.Enabled {
		transport = mail.NewSendgridTransport(cfg.Mail, cfg.Reports.SenderEmail)
	} else {
		transport = mail.NewLogTransport(logr)
	}
	mailWorker := service.NewMailWorker(transport, logr)
	mailQueue := jobs.NewQueue("report-mail", mailWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.Workers,
		BufferSize: cfg.Reports.QueueSize,
		Logger:     logr,
	})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	reportSvc := service.NewReportService(reportRepo, studentRepo, statsRepo, universityRepo, export.NewPDFExporter(), mailQueue, logr)

	batch := scheduler.New(reportSvc, metricsSvc, cfg.Reports, logr)
	if cfg.Reports.Enabled {
		if err := batch.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start report scheduler", "error", err)
		}
		defer batch.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	universityHandler := handler.NewUniversityHandler(catalogSvc)
	departmentHandler := handler.NewDepartmentHandler(catalogSvc)
	professorHandler := handler.NewProfessorHandler(catalogSvc)
	subjectHandler := handler.NewSubjectHandler(catalogSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, statsSvc)
	reportHandler := handler.NewReportHandler(reportSvc, statsSvc, batch)
	authHandler := handler.NewAuthHandler(accountSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	api.GET("/universities", universityHandler.List)
	api.GET("/universities/:id", universityHandler.Get)
	api.GET("/departments", departmentHandler.List)
	api.GET("/professors", professorHandler.List)
	api.GET("/subjects", subjectHandler.List)
	api.GET("/subjects/:id", subjectHandler.Get)
	api.GET("/students", studentHandler.List)
	api.GET("/students/:id", studentHandler.Get)
	api.GET("/students/:id/summary", studentHandler.Summary)
	api.GET("/enrollments", enrollmentHandler.List)
	api.GET("/enrollments/:id", enrollmentHandler.Get)
	api.GET("/grades", gradeHandler.List)
	api.GET("/reports/enrollments", reportHandler.Rows)
	api.GET("/reports/scores", reportHandler.Averages)

	protected := api.Group("", middleware.JWT(accountSvc))
	protected.PUT("/auth/email", authHandler.UpdateEmail)
	protected.POST("/universities", universityHandler.Create)
	protected.POST("/departments", departmentHandler.Create)
	protected.POST("/professors", professorHandler.Create)
	protected.PUT("/professors/:id/subjects/:subjectId", professorHandler.AssignSubject)
	protected.POST("/subjects", subjectHandler.Create)
	protected.POST("/students", studentHandler.Create)
	protected.POST("/students/:id/report", studentHandler.QueueReport)
	protected.POST("/enrollments", enrollmentHandler.Create)
	protected.POST("/enrollments/bulk", enrollmentHandler.Bulk)
	protected.DELETE("/enrollments/:id", enrollmentHandler.Delete)
	protected.POST("/grades", gradeHandler.Create)

	staff := protected.Group("", middleware.RequireStaff())
	staff.POST("/reports/batch", reportHandler.RunBatch)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
