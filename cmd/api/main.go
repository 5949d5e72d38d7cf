// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/sort-forge/internal/api"
	"github.com/yourusername/sort-forge/internal/auth"
	"github.com/yourusername/sort-forge/internal/config"
	"github.com/yourusername/sort-forge/internal/fetch"
	"github.com/yourusername/sort-forge/internal/jobs"
	"github.com/yourusername/sort-forge/internal/logging"
	"github.com/yourusername/sort-forge/internal/pipeline"
	"github.com/yourusername/sort-forge/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		fatal(logger, "server stopped with error", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 作業ディレクトリ（未指定なら終了時に削除する一時ディレクトリ）
	store, cleanup, err := setupStorage(cfg)
	if err != nil {
		return err
	}
	jobsStopped := false
	defer func() {
		if !jobsStopped {
			cleanup()
		}
	}()
	logger.Info("working directory ready", "dir", store.Root())

	fetcher, err := fetch.New(store, fetch.Options{
		PoolSize: cfg.FetchPoolSize,
		Timeout:  cfg.FetchTimeout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	runner, err := pipeline.New(fetcher, store, pipeline.Options{
		BufferSize: cfg.BufferSize,
		MaxTail:    cfg.MaxTailBytes,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	manager, closeJobs, err := setupJobs(ctx, cfg, runner, logger)
	if err != nil {
		return err
	}
	defer closeJobs()
	if err := manager.Start(cfg.Workers); err != nil {
		return err
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	setupRoutes(router, cfg, manager, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", srv.Addr, "mode", cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			jobsStopped = true
			stopJobs(context.Background(), manager, cleanup, logger)
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "err", err)
	}
	// 投入済みのジョブを処理し終えてからワーカーを止める
	jobsStopped = true
	stopJobs(shutdownCtx, manager, cleanup, logger)
	return nil
}

// stopJobs はワーカーを停止し、全ワーカーが終了した場合に限り作業ディレクトリを片付けます。
// 実行中のジョブが残っている間はファイルを消しません。
func stopJobs(ctx context.Context, manager *jobs.Manager, cleanup func(), logger *slog.Logger) {
	if err := manager.Shutdown(ctx); err != nil {
		logger.Error("job workers still running, keeping working directory",
			"err", err, "pending", manager.Pending())
		return
	}
	cleanup()
}

func setupStorage(cfg *config.Config) (*storage.Local, func(), error) {
	if cfg.WorkDir != "" {
		store, err := storage.NewLocal(cfg.WorkDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
	store, err := storage.NewTemp("sort-forge-*")
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.RemoveAll() }, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "sort-forge-api",
			"version": "0.1.0",
			"pending": manager.Pending(),
		})
	}
}

// setupRoutes は CORS、認証、API ハンドラーの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, manager *jobs.Manager, logger *slog.Logger) {
	router.Use(cors.New(corsConfig(cfg)))

	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth(manager))

	routes := router.Group("")
	if cfg.AuthEnabled() {
		authManager := auth.NewManager(cfg)
		routes.Use(authManager.RequireBasicAuth())
	}
	api.NewHandler(manager, logger).Register(routes)
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	origins := splitOrigins(cfg.CORSAllowedOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Accept", "Authorization", "If-None-Match"}
	corsConfig.ExposeHeaders = []string{"ETag", "X-Job-Id"}
	return corsConfig
}

func splitOrigins(raw string) []string {
	var origins []string
	for origin := range strings.SplitSeq(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// requestLogger は gin のアクセスログを slog に流します。
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
