package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/resonance/internal/notify"
	"github.com/scrypster/resonance/internal/scheduler"
	"github.com/scrypster/resonance/internal/server"
)

// eventMaxAge bounds how old a relayed event from another process may be.
// Anything older was written while no server was running.
const eventMaxAge = 10 * time.Minute

var serveOrigins []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the decay scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "extra websocket origin host pattern (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if hc, ok := a.embedder.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			log.Printf("cli: embedding provider unreachable, indexing will report warnings: %v", err)
		}
	}

	opts := server.Options{
		Version:        VersionString(),
		RateLimit:      a.cfg.Server.RateLimit,
		RateBurst:      a.cfg.Server.RateBurst,
		OriginPatterns: serveOrigins,
	}

	var sched *scheduler.DecayScheduler
	if a.cfg.Engine.DecayInterval > 0 {
		sched, err = scheduler.NewDecayScheduler(a.engine, a.cfg.Engine.DecayInterval)
		if err != nil {
			return err
		}
		opts.Scheduler = sched
	}

	srv := server.New(a.engine, opts)

	watcher := notify.NewEventWatcher(a.cfg.Storage.DataPath, notify.WatcherOptions{
		Types: []string{
			server.EventFeelingStored, server.EventShadowDetected,
			server.EventTraitRefreshed, server.EventDecayCompleted,
		},
		MaxAge: eventMaxAge,
	}, func(evt notify.Event) {
		srv.Hub().Publish(evt.Type, evt.Data)
	})
	if err := watcher.Start(); err != nil {
		log.Printf("cli: cross-process events disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	schedDone := make(chan error, 1)
	if sched != nil {
		go func() { schedDone <- sched.Start(ctx) }()
	} else {
		schedDone <- nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "resonance %s listening on %s\n", Version, a.cfg.Addr())
	if len(serveOrigins) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "  websocket origins: %s\n", strings.Join(serveOrigins, ", "))
	}

	serveErr := srv.ListenAndServe(ctx, a.cfg.Addr())
	stop()

	if err := <-schedDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("cli: decay scheduler stopped: %v", err)
	}
	return serveErr
}
