package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/config"
	"github.com/xxxsen/pdfqa/internal/handler"
	"github.com/xxxsen/pdfqa/internal/job"
	"github.com/xxxsen/pdfqa/internal/middleware"
	"github.com/xxxsen/pdfqa/internal/schedule"
	"github.com/xxxsen/pdfqa/internal/service"
)

const cacheCleanupSpec = "@daily"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "pdfqa",
		Short:        "question answering over a pdf corpus",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(ctx, a)
		},
	}

	var force bool
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "index the documents of the file store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			summary, err := a.ingest.Ingest(ctx, service.IngestRequest{ForceReindex: force})
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	ingestCmd.Flags().BoolVar(&force, "force", false, "clear the index and reindex every document")

	var recreate bool
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "create or recreate the index schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if recreate {
				if err := a.index.Recreate(ctx); err != nil {
					return fmt.Errorf("recreate index: %w", err)
				}
				logutil.GetLogger(ctx).Info("index recreated", zap.String("index", cfg.Index.Name))
			}
			return nil
		},
	}
	schemaCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the index tables")

	var topK int
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "answer one question from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			req := service.ChatRequest{Question: args[0]}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}
			answer, err := a.chat.Chat(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, answer)
		},
	}
	askCmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve")

	rootCmd.AddCommand(runCmd, ingestCmd, schemaCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("index", cfg.Index.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(a.chat),
		Ingest:        handler.NewIngestHandler(a.ingest),
		Health:        handler.NewHealthHandler(cfg.Summary(), a.ingest, a.index),
		Files:         handler.NewFileHandler(a.store),
		ChatRateLimit: time.Duration(cfg.Server.ChatRateLimitMs) * time.Millisecond,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.Server.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewIngestJob(a.ingest), cfg.Ingest.Schedule); err != nil {
		return err
	}
	if a.cacheRepo != nil {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbedCache.MaxAgeDays), cacheCleanupSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logutil.GetLogger(context.Background()).Info("server stopping...")
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
