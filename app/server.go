package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/htol/shelf/api"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/config"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/repo"
)

const shutdownTimeout = 30 * time.Second

// Server runs the HTTP handler and, optionally, a store watcher until its
// context is cancelled.
type Server struct {
	http  *http.Server
	watch func(context.Context) error
}

func NewServer(h http.Handler, cfg config.ServerConfig) *Server {
	return &Server{
		http: &http.Server{
			Handler:      h,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
		},
	}
}

// WatchStore reloads cat whenever the JSON file at path changes on disk.
func (s *Server) WatchStore(path string, cat *catalog.Catalog) {
	s.watch = func(ctx context.Context) error {
		return repo.Watch(ctx, path, func() {
			if err := cat.Reload(ctx); err != nil {
				logger.Warn("Failed to reload library", "path", path, "error", err)
				return
			}
			logger.Info("Library reloaded", "path", path)
		})
	}
}

// Run serves on ln until ctx is done, then shuts down gracefully.
// A failing watcher is logged and does not stop the server.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	})

	if s.watch != nil {
		g.Go(func() error {
			if err := s.watch(gctx); err != nil {
				logger.Warn("Store watcher stopped", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI, JSON API and OPDS catalog",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return usageError{err}
				}
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withCatalog(sigCtx, func(cat *catalog.Catalog) error {
				ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}

				srv := NewServer(api.NewHandler(cat, cfg.Server), cfg.Server)
				if cfg.Store.Watch && cfg.Store.Driver == config.DriverJSON {
					srv.WatchStore(cfg.Store.Location(), cat)
				}
				logger.Info("Library ready", "store", cfg.Store.Location(), "driver", cfg.Store.Driver,
					"books", cat.Statistics(sigCtx).Total, "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
				return srv.Run(sigCtx, ln)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port number (overrides config)")
	return cmd
}
