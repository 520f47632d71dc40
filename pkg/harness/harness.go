// Package harness runs the operator's reconciler and HTTP server as
// concurrent actors, the first to exit terminating the whole process,
// signal-driven shutdown included.
package harness

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/oklog/run"
)

// httpShutdownTimeout bounds how long the HTTP server is given to drain
// in-flight requests once another actor causes the group to exit.
const httpShutdownTimeout = 5 * time.Second

// Manager is the subset of ctrl.Manager's Start method the harness needs,
// kept narrow so this package doesn't import controller-runtime.
type Manager interface {
	Start(ctx context.Context) error
}

// Run starts mgr's reconcile loop and an HTTP server serving mux on addr as
// two concurrent actors alongside a signal handler, and blocks until any one
// of them exits. SIGINT/SIGTERM trigger a graceful shutdown of all actors.
func Run(log logr.Logger, mgr Manager, mux http.Handler, addr string) error {
	var g run.Group

	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)

		g.Add(
			func() error {
				select {
				case sig := <-term:
					log.Info("received termination signal, shutting down", "signal", sig.String())
				case <-cancel:
				}
				return nil
			},
			func(error) {
				close(cancel)
			},
		)
	}

	{
		server := &http.Server{Addr: addr, Handler: mux}
		g.Add(func() error {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			_ = server.Shutdown(ctx)
		})
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return mgr.Start(ctx)
		}, func(error) {
			cancel()
		})
	}

	return g.Run()
}
