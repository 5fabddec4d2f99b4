package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uni-edt/timetable-api/api/swagger"
	"github.com/uni-edt/timetable-api/internal/handler"
	"github.com/uni-edt/timetable-api/internal/middleware"
	"github.com/uni-edt/timetable-api/internal/repository"
	"github.com/uni-edt/timetable-api/internal/service"
	"github.com/uni-edt/timetable-api/pkg/cache"
	"github.com/uni-edt/timetable-api/pkg/config"
	"github.com/uni-edt/timetable-api/pkg/database"
	"github.com/uni-edt/timetable-api/pkg/logger"
	corsmiddleware "github.com/uni-edt/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uni-edt/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 0.1.0
// @description Weekly university timetable generation and management
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and distributed leases disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	teacherRepo := repository.NewTeacherRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	subjectRepo := repository.NewSubjectRepository(db, teacherRepo, groupRepo)
	sessionRepo := repository.NewSessionRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	leaseRepo := repository.NewLeaseRepository(redisClient, cfg.Scheduler.LeaseTTL)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, teacherRepo, cfg.JWT, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, groupRepo, validate, logr)
	validatorSvc := service.NewSessionValidatorService(teacherRepo, roomRepo, groupRepo, sessionRepo, validate, logr)
	generatorSvc := service.NewTimetableGeneratorService(subjectRepo, roomRepo, sessionRepo, timetableRepo, leaseRepo, cacheRepo, metricsSvc, db, cfg.Scheduler, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, sessionRepo, validatorSvc, subjectRepo, roomRepo, cacheRepo, cfg.Timetable.CacheTTL, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	timetableHandler := handler.NewTimetableHandler(generatorSvc, validatorSvc, timetableSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		}

		authed := api.Group("")
		authed.Use(middleware.JWT(authSvc))

		teachers := authed.Group("/teachers")
		{
			teachers.GET("", teacherHandler.List)
			teachers.GET("/:id", teacherHandler.Get)
			teachers.POST("", middleware.RequireRoles("admin"), teacherHandler.Create)
			teachers.PUT("/:id", middleware.RequireRoles("admin"), teacherHandler.Update)
			teachers.DELETE("/:id", middleware.RequireRoles("admin"), teacherHandler.Delete)
		}

		rooms := authed.Group("/rooms")
		{
			rooms.GET("", roomHandler.List)
			rooms.GET("/:id", roomHandler.Get)
			rooms.POST("", middleware.RequireRoles("admin"), roomHandler.Create)
			rooms.PUT("/:id", middleware.RequireRoles("admin"), roomHandler.Update)
			rooms.DELETE("/:id", middleware.RequireRoles("admin"), roomHandler.Delete)
		}

		groups := authed.Group("/groups")
		{
			groups.GET("", groupHandler.List)
			groups.GET("/:id", groupHandler.Get)
			groups.POST("", middleware.RequireRoles("admin"), groupHandler.Create)
			groups.PUT("/:id", middleware.RequireRoles("admin"), groupHandler.Update)
			groups.DELETE("/:id", middleware.RequireRoles("admin"), groupHandler.Delete)
		}

		subjects := authed.Group("/subjects")
		{
			subjects.GET("", subjectHandler.List)
			subjects.GET("/:id", subjectHandler.Get)
			subjects.POST("", middleware.RequireRoles("admin"), subjectHandler.Create)
			subjects.PUT("/:id", middleware.RequireRoles("admin"), subjectHandler.Update)
			subjects.DELETE("/:id", middleware.RequireRoles("admin"), subjectHandler.Delete)
		}

		timetable := authed.Group("/timetable")
		{
			timetable.POST("/generate", middleware.RequireRoles("admin"), timetableHandler.Generate)
			timetable.POST("/validate", timetableHandler.ValidateSession)
			timetable.GET("/week/:week", timetableHandler.GetWeek)
			timetable.PUT("/session/:sessionId", middleware.RequireRoles("admin"), timetableHandler.MoveSession)
			timetable.GET("/:groupId/:week", timetableHandler.GetGroupWeek)
			timetable.GET("/:groupId/:week/export", timetableHandler.Export)
			timetable.DELETE("/:groupId/:week", middleware.RequireRoles("admin"), timetableHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
