package backendsim

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/EV081/mysto-mobile-sub000/internal/platform/timeouts"
)

// Run serves the simulator on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, sim *Sim) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("backend simulator listening on %s", listener.Addr())

	server := &http.Server{
		Handler:           sim.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if serveErr := server.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
