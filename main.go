package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github/itish2003/docqa/config"
	"github/itish2003/docqa/controller"
	"github/itish2003/docqa/services"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, port string

	cmd := &cobra.Command{
		Use:          "docqa",
		Short:        "Multilingual document question answering server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				if errors.Is(err, config.ErrMissingAPIKey) {
					log.Printf("FATAL: ConfigurationError: %v", err)
				}
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "docqa", version)
		},
	})
	return cmd
}

func serve(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	router := newRouter(app.controller)

	if cfg.Server.WatchDir != "" {
		watchDir, _ := filepath.Abs(cfg.Server.WatchDir)
		uploadDir, _ := filepath.Abs(cfg.Server.UploadDir)
		if watchDir == uploadDir {
			return fmt.Errorf("watch_dir must differ from upload_dir (%s)", watchDir)
		}
		if err := os.MkdirAll(watchDir, 0o755); err != nil {
			return fmt.Errorf("create watch dir: %w", err)
		}
		watcher := services.NewInboxWatcher(app.service)
		go func() {
			if err := watcher.Watch(ctx, watchDir); err != nil {
				log.Printf("WATCHER ERROR: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Go Gin backend server starting on http://localhost:%s", cfg.Server.Port)
		log.Printf("Health check available at: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("API endpoints:")
		log.Printf("  POST http://localhost:%s/upload", cfg.Server.Port)
		log.Printf("  POST http://localhost:%s/ask", cfg.Server.Port)
		log.Printf("  GET  http://localhost:%s/sessions", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
	app.sessions.Close(shutdownCtx)
	return nil
}

func newRouter(ragController *controller.RAGController) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "docqa",
			"version": version,
		})
	})

	ragController.RegisterRoutes(router)
	return router
}
