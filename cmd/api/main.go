package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/config"
	"faceattend/internal/faceclient"
	"faceattend/internal/handler"
	"faceattend/internal/httpmiddleware"
	"faceattend/internal/logger"
	"faceattend/internal/store"
	"faceattend/internal/uploads"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Log.Fatalw("http server failed", "error", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = repo.Close() }()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	logger.Log.Infow("database connected")

	issuer, err := uploads.NewIssuer(ctx, uploads.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return err
	}

	checks := map[string]handler.Check{"db": repo.Ping}

	faces, err := newComparer(ctx, cfg, issuer, checks)
	if err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			if !redisClient.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := attendance.NewMetrics(reg)

	svc := attendance.NewService(repo, faces, issuer, metrics, cfg.UpstreamTimeout)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware("/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(securityHeaders())

	if cfg.RateLimitPerMin > 0 {
		var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		if cfg.RateLimitBackend == "redis" && redisClient != nil {
			limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
		}
		r.Use(httpmiddleware.RateLimit(limiter))
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	var admin []gin.HandlerFunc
	if cfg.AdminAuthEnabled() {
		admin = append(admin, auth.AdminAuth(cfg.AdminSigningKey, cfg.JWTIssuer))
	} else {
		logger.Log.Warnw("admin routes are unauthenticated; set ADMIN_JWT_SIGNING_KEY to protect them")
	}
	handler.New(svc, checks).Register(r, admin...)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(svc),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infow("server running", "port", cfg.HTTPPort, "faceBackend", cfg.FaceBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Log.Infow("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("server forced shutdown", "error", err)
	}

	logger.Log.Infow("server exited")
	return nil
}

// writeTimeout leaves headroom past the slowest workflow call so a
// response is never cut off after its side effects are committed.
func writeTimeout(svc *attendance.Service) time.Duration {
	return svc.MaxRequestDuration() + 15*time.Second
}

func newComparer(ctx context.Context, cfg config.App, issuer *uploads.Issuer, checks map[string]handler.Check) (faceclient.Comparer, error) {
	switch cfg.FaceBackend {
	case "http":
		client := faceclient.New(cfg.FaceServiceURL, issuer)
		checks["faceService"] = client.Health
		return client, nil
	case "skip":
		logger.Log.Warnw("face comparison disabled; every comparison matches")
		return faceclient.Skip{}, nil
	default:
		return faceclient.NewRekognition(ctx, cfg.RekognitionRegion,
			cfg.RekognitionAccessKeyID, cfg.RekognitionSecretAccessKey, cfg.S3Bucket)
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
