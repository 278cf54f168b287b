package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/handlers"
	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/database"
	"github.com/phishers-marketplace/marketplace-api/internal/events"
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/groups"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/internal/storage"
	"github.com/phishers-marketplace/marketplace-api/internal/tokens"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

const welcomeMessage = "Welcome to the Phishers Marketplace!"

// backends holds the optional external clients; nil means not configured or
// unreachable at startup.
type backends struct {
	mongo     *mongo.Client
	db        *mongo.Database
	redis     *redis.Client
	store     storage.ObjectStore
	publisher events.Publisher
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: env=%s mongo=%s redis=%v minio=%v kafka=%v",
		cfg.Server.Environment, cfg.DB.Host, cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", len(cfg.Kafka.Brokers) > 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := connect(ctx, cfg)
	defer b.close()

	svc, hub := newServices(cfg, b)
	go hub.Run(ctx)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := buildRouter(cfg, b, svc)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting marketplace API on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// connect reaches the configured backends. Only MongoDB is required, unless
// DB_MEMORY_FALLBACK allows running on in-memory repositories.
func connect(ctx context.Context, cfg *config.Config) *backends {
	b := &backends{publisher: events.NopPublisher{}}

	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
			_ = rdb.Close()
		} else {
			b.redis = rdb
			sessions.SetBlacklistClient(rdb)
			logger.Infof("Connected to Redis: %s", cfg.Redis.Addr())
		}
	}

	client, err := database.ConnectWithRetry(ctx, cfg.DB.URI(), database.Options{Timeout: cfg.DB.Timeout, PoolSize: cfg.DB.PoolSize}, 5, time.Second)
	switch {
	case err == nil:
		b.mongo = client
		b.db = client.Database(cfg.DB.Name)
		if err := database.EnsureIndexes(ctx, b.db); err != nil {
			logger.Errorf("index creation failed: %v", err)
		}
	case cfg.DB.MemoryFallback:
		logger.Warnf("%v; using in-memory repositories", err)
	default:
		logger.Fatalf("%v", err)
	}

	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("image storage unavailable: %v", err)
		} else {
			b.store = st
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		b.publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Infof("publishing marketplace events to %s on %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}
	return b
}

func (b *backends) close() {
	if err := b.publisher.Close(); err != nil {
		logger.Warnf("event publisher close: %v", err)
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.mongo != nil {
		_ = b.mongo.Disconnect(context.Background())
	}
}

// newServices builds the domain services on Mongo when connected and on
// in-memory repositories otherwise. Refresh sessions prefer Redis.
func newServices(cfg *config.Config, b *backends) (handlers.Services, *chat.Hub) {
	var (
		userRepo    users.UserRepository
		friendRepo  friends.Repository
		chatRepo    chat.Repository
		groupRepo   groups.Repository
		itemRepo    items.Repository
		txRepo      transactions.Repository
		sessionRepo sessions.Repository
	)
	if b.db != nil {
		userRepo = users.NewMongoUserRepository(b.db.Collection(models.CollectionUsers))
		friendRepo = friends.NewMongoRepository(b.db.Collection(models.CollectionFriendships))
		chatRepo = chat.NewMongoRepository(b.db)
		groupRepo = groups.NewMongoRepository(b.db)
		itemRepo = items.NewMongoRepository(b.db.Collection(models.CollectionItems))
		txRepo = transactions.NewMongoRepository(b.db.Collection(models.CollectionTransactions))
		sessionRepo = sessions.NewMongoRepository(b.db.Collection(models.CollectionSessions))
	} else {
		userRepo = users.NewMemoryUserRepository()
		friendRepo = friends.NewMemoryRepository()
		chatRepo = chat.NewMemoryRepository()
		groupRepo = groups.NewMemoryRepository()
		itemRepo = items.NewMemoryRepository()
		txRepo = transactions.NewMemoryRepository()
		sessionRepo = sessions.NewMemoryRepository()
	}
	if b.redis != nil {
		sessionRepo = sessions.NewRedisRepository(b.redis, "session:")
		logger.Infof("Using Redis for session storage")
	}

	hub := chat.NewHub(b.redis, middleware.AllowOrigin(cfg.CORS.Origins))
	userSvc := users.NewService(userRepo)
	friendSvc := friends.NewService(friendRepo, userSvc)
	itemSvc := items.NewService(itemRepo, b.store, b.publisher)

	return handlers.Services{
		Config:       cfg,
		Verifier:     tokens.NewVerifier(cfg.Security.JWTSecret),
		Users:        userSvc,
		Sessions:     sessions.NewService(sessionRepo),
		Friends:      friendSvc,
		Chat:         chat.NewService(chatRepo, userSvc, friendSvc, hub),
		Hub:          hub,
		Groups:       groups.NewService(groupRepo, userSvc, hub),
		Items:        itemSvc,
		Transactions: transactions.NewService(txRepo, itemSvc, b.publisher),
	}, hub
}

// rateLimiter returns a limiter with its own counters.
func rateLimiter(cfg *config.Config, b *backends) gin.HandlerFunc {
	if cfg.RateLimit.UseRedis && b.redis != nil {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		return middleware.RedisRateLimitMiddleware(b.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
	}
	return middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func buildRouter(cfg *config.Config, b *backends, svc handlers.Services) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(middleware.CORS(cfg.CORS.Origins))
	r.Use(metrics.Middleware())

	// the global limiter runs before authentication and keys by client IP;
	// authenticated routes get a second, per-user limiter after CurrentUser
	if cfg.RateLimit.Enabled {
		r.Use(rateLimiter(cfg, b))
		svc.UserLimit = rateLimiter(cfg, b)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) { ready(c, b) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Mount(r, svc)
	return r
}

// ready returns 200 only when the configured backends answer.
func ready(c *gin.Context, b *backends) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ok := true
	deps := gin.H{"storage": "memory"}
	if b.mongo != nil {
		deps["storage"] = "mongodb"
		if err := b.mongo.Ping(ctx, nil); err != nil {
			deps["mongodb"] = err.Error()
			ok = false
		}
	}
	if b.redis != nil {
		deps["redis"] = true
		if err := b.redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = err.Error()
			ok = false
		}
	}
	deps["images"] = b.store != nil

	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
}
