package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/openquiz/internal/api"
	"github.com/victornm/openquiz/internal/event"
	"github.com/victornm/openquiz/internal/image"
	"github.com/victornm/openquiz/internal/metrics"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/report"
	"github.com/victornm/openquiz/internal/store"
	"github.com/victornm/openquiz/internal/submission"
	"github.com/victornm/openquiz/internal/telemetry"
)

const connectTimeout = 10 * time.Second

type Config struct {
	Log telemetry.LogConfig

	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Stats struct {
		// MaxRetries bounds the optimistic retries of a statistics update.
		MaxRetries int
	}

	Upload struct {
		MaxBytes int64
	}
}

// DefaultConfig is what a local run gets without a config file.
func DefaultConfig() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.Format = telemetry.LogFormatJSON
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "openquiz"
	c.Postgres.Addr = "localhost:5432"
	c.Postgres.User = "openquiz"
	c.Postgres.Name = "openquiz"
	c.Stats.MaxRetries = 25
	c.Upload.MaxBytes = 5 << 20
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		quiz       *quiz.Service
		submission *submission.Service
		image      *image.Service
		report     *report.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	if _, err := telemetry.SetupLogger(os.Stdout, c.Log); err != nil {
		return nil, fmt.Errorf("server: setup logger: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pc := s.c.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	sc := store.Config{
		Redis:      s.infra.redis,
		Prefix:     s.c.Redis.Prefix,
		MaxRetries: s.c.Stats.MaxRetries,
	}
	quizzes, stats := store.NewQuizStore(sc), store.NewStatsStore(sc)

	blobs := image.NewPostgresBlobs(s.infra.postgres)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := blobs.Migrate(ctx); err != nil {
		return err
	}

	s.service.quiz = quiz.NewService(quiz.Config{
		Quizzes:  quizzes,
		Stats:    stats,
		EventBus: s.eb,
	})

	s.service.submission = submission.NewService(submission.Config{
		Quizzes:  quizzes,
		Stats:    stats,
		EventBus: s.eb,
	})

	s.service.image = image.NewService(image.Config{
		Blobs:    blobs,
		MaxBytes: s.c.Upload.MaxBytes,
	})

	s.service.report = report.NewService(report.Config{
		Quizzes: quizzes,
		Stats:   stats,
	})

	if _, err := metrics.New(metrics.Config{
		EventBus:   s.eb,
		Registerer: prometheus.DefaultRegisterer,
	}); err != nil {
		return err
	}

	return nil
}

func (s *Server) initAPI() {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(telemetry.GinLogger(), gin.Recovery())
	e.GET("/healthz", s.healthz)

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		GRPC:       s.grpc,
		HTTP:       e,
		Quiz:       s.service.quiz,
		Submission: s.service.submission,
		Image:      s.service.image,
		Report:     s.service.report,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx := c.Request.Context()

	var eg errgroup.Group
	eg.Go(func() error {
		return s.infra.redis.Ping(ctx).Err()
	})
	eg.Go(func() error {
		return s.infra.postgres.Ping(ctx)
	})

	if err := eg.Wait(); err != nil {
		slog.WarnContext(ctx, "server: health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}
	s.infra.postgres.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
