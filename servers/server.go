package servers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/reusee/infsite/llmproxy"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/sites"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Handler http.Handler

func (Module) Handler(
	site *sites.Handler,
	llm *llmproxy.Handler,
	logging Logging,
	recovery Recovery,
) Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/llm", llm)
	mux.Handle("GET /", site)
	return logging(recovery(mux))
}

type Server = *http.Server

func (Module) Server(
	addr ListenAddr,
	idleTimeout IdleTimeout,
	handler Handler,
	logger logs.Logger,
) Server {
	return &http.Server{
		Addr:              string(addr),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout, generated pages stream for minutes
		IdleTimeout: time.Duration(idleTimeout),
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// Serve runs the server on ln until ctx is done, then shuts it down
// gracefully.
type Serve func(ctx context.Context, ln net.Listener) error

func (Module) Serve(
	server Server,
	logger logs.Logger,
) Serve {
	return func(ctx context.Context, ln net.Listener) error {
		group, ctx := errgroup.WithContext(ctx)

		group.Go(func() error {
			logger.Info("serving", "addr", ln.Addr().String())
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			if err := server.Shutdown(shutdownCtx); err != nil {
				// streams still open after the timeout
				logger.Warn("shutdown", "error", err)
				return server.Close()
			}
			return nil
		})

		return group.Wait()
	}
}

type Run func(ctx context.Context) error

func (Module) Run(
	addr ListenAddr,
	serve Serve,
) Run {
	return func(ctx context.Context) error {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", string(addr))
		if err != nil {
			return err
		}
		return serve(ctx, ln)
	}
}
