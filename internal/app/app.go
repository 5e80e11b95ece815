package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/controller"
	"vidyabot_backend/internal/middleware"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/service"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/cache"
	"vidyabot_backend/pkg/configwatcher"
	"vidyabot_backend/pkg/database"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/monitoring"
	"vidyabot_backend/pkg/security"
	"vidyabot_backend/pkg/tracing"
	"vidyabot_backend/pkg/transcription"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	ctx             context.Context
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
	callbackMu      sync.Mutex
}

type repositories struct {
	student  *repository.StudentRepository
	message  *repository.MessageRepository
	state    *repository.CapabilityStateRepository
	teaching *repository.TeachingBlockRepository
	doubt    *repository.CapabilityResponseRepository
	syllabus *repository.SyllabusRepository
}

type services struct {
	scorer     *service.CapabilityScorer
	capability *service.CapabilityService
	student    *service.StudentService
	ai         *service.AIService
	syllabus   *service.SyllabusService
	storage    *service.StorageService
	speech     *service.SpeechService
	teaching   *service.TeachingService
	doubt      *service.DoubtService
	gateway    *service.TutorGateway
	eviction   *service.CacheEvictionService
	pool       *transcription.Pool
}

type controllers struct {
	health   *controller.HealthController
	student  *controller.StudentController
	teaching *controller.TeachingController
	doubt    *controller.DoubtController
	speech   *controller.SpeechController
	syllabus *controller.SyllabusController
	gateway  *controller.GatewayController
}

// RegisterConfigCallback adds a hook that runs after every config reload.
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.callbackMu.Lock()
	defer a.callbackMu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.callbackMu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.callbackMu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		student:  repository.NewStudentRepository(db),
		message:  repository.NewMessageRepository(db),
		state:    repository.NewCapabilityStateRepository(db),
		teaching: repository.NewTeachingBlockRepository(db),
		doubt:    repository.NewCapabilityResponseRepository(db),
		syllabus: repository.NewSyllabusRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	var teachingOpts, doubtOpts []cache.Option
	if rdb != nil {
		layer := cache.NewRedisLayer(rdb, util.RedisKeyCachePrefix, cfg.Cache.RedisTTL())
		teachingOpts = append(teachingOpts, cache.WithLayer(layer))
		doubtOpts = append(doubtOpts, cache.WithLayer(layer))
	}
	lessons := cache.New[model.TeachingBlockKey, model.TeachingContent]("teaching", repos.teaching, teachingOpts...)
	answers := cache.New[model.DoubtKey, model.DoubtAnswer]("doubt", repos.doubt, doubtOpts...)

	s.scorer = service.NewCapabilityScorer(cfg.Capability)
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.scorer.Update(newCfg.Capability)
		logger.Log.Info("Capability tunables updated",
			zap.Int("lowMax", newCfg.Capability.LowMax),
			zap.Int("mediumMax", newCfg.Capability.MediumMax))
	})
	s.capability = service.NewCapabilityService(s.scorer, repos.state, repos.message, repos.student)
	s.student = service.NewStudentService(repos.student, repos.message, repos.teaching, s.capability)
	s.ai = service.NewAIService(cfg.AI)

	var embedder service.Embedder
	if cfg.Embedding.APIKey != "" {
		client, err := service.NewGenAIEmbedder(a.ctx, cfg.Embedding)
		if err != nil {
			logger.Log.Warn("Embedding client unavailable, retrieval falls back to chapter order", zap.Error(err))
		} else {
			embedder = client
		}
	}
	s.syllabus = service.NewSyllabusService(repos.syllabus, embedder, cfg.Retrieval.FallbackLimit)
	s.storage = service.NewStorageService(cfg)

	poolCfg := transcription.Config{
		Workers:    cfg.Speech.Workers,
		TempDir:    cfg.Speech.TempDir,
		JobTimeout: cfg.Speech.JobTimeout(),
	}
	if cfg.Speech.NormalizeAudio {
		poolCfg.Transcoder = util.NormalizeAudio
		checkCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		if version, err := util.FFmpegVersion(checkCtx); err != nil {
			logger.Log.Warn("audio normalization enabled but ffmpeg is unavailable", zap.Error(err))
		} else {
			logger.Log.Info("ffmpeg found", zap.String("version", version))
		}
		cancel()
	}
	pool, err := transcription.NewPool(
		transcription.NewWhisperRecognizer(cfg.Speech.BinaryPath, cfg.Speech.ModelPath, cfg.Speech.Language),
		poolCfg,
	)
	if err != nil {
		return nil, fmt.Errorf("start transcription pool: %w", err)
	}
	s.pool = pool
	s.speech = service.NewSpeechService(pool, s.storage, cfg.Speech.MaxAudioBytes, cfg.Speech.ArchiveAudio)

	s.teaching = service.NewTeachingService(s.student, s.capability, s.syllabus, s.ai, lessons, cfg.Retrieval.TeachingLimit)
	s.doubt = service.NewDoubtService(s.student, s.capability, s.syllabus, s.speech, s.ai, repos.message, answers, cfg.Retrieval.DoubtLimit)
	s.gateway = service.NewTutorGateway(s.teaching, s.doubt, cfg.Speech.MaxAudioBytes)

	s.eviction = service.NewCacheEvictionService(cfg.Cache.EvictionSchedule, cfg.Cache.MaxIdle(), lessons, answers)
	if err := s.eviction.Start(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("start cache eviction: %w", err)
	}

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	health := controller.NewHealthController(db, rdb, s.pool)
	if a.Config.Speech.NormalizeAudio {
		health.FFmpeg = util.FFmpegVersion
	}
	return &controllers{
		health:   health,
		student:  controller.NewStudentController(s.student, s.capability),
		teaching: controller.NewTeachingController(s.teaching),
		doubt:    controller.NewDoubtController(s.doubt),
		speech:   controller.NewSpeechController(s.speech),
		syllabus: controller.NewSyllabusController(s.syllabus),
		gateway:  controller.NewGatewayController(s.gateway),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(gin.Recovery())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(
		a.ctx,
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		util.TooManyRequests,
	))

	// tracing
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp wires every component. configDir is watched for capability changes
// once Run starts.
func NewApp(cfg *config.Config, configDir string) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	monitoring.Init()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	// release mode only migrates when asked to
	if cfg.ForceMigrate || cfg.Server.Mode == gin.DebugMode {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, caches run on the database only", zap.Error(err))
		rdb = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
		Redis:     rdb,
		ctx:       ctx,
		cancel:    cancel,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		cancel()
		return nil, err
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app, nil
}

// Run serves HTTP until SIGINT/SIGTERM, then shuts every component down.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	if a.ConfigDir != "" {
		go func() {
			if err := configwatcher.Watch(a.ctx, a.ConfigDir, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// wait for a signal, then shut down gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		logger.Log.Info("Shutting down server...")
	case runErr = <-serveErr:
		logger.Log.Error("Server failed", zap.Error(runErr))
	}

	// websocket clients go first, then HTTP
	a.services.gateway.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
	return runErr
}

// Close stops background workers. It is safe to call more than once.
func (a *App) Close() {
	a.cancel()
	if a.services != nil {
		a.services.eviction.Stop()
		a.services.pool.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
	if a.Redis != nil {
		a.Redis.Close()
		a.Redis = nil
	}
	_ = logger.Log.Sync()
}
