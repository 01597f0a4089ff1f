package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/selection"
	"meetcal/internal/store"
	"meetcal/internal/web"
)

// recentIntents bounds the intent buffer served by GET /api/selection.
const recentIntents = 50

func newServeCommand(g *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar and lifecycle API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if listen != "" {
				a.cfg.Listen = listen
			}

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			meetings, err := a.loadMeetings(ctx)
			if err != nil {
				// Start empty; the scheduled reload may succeed later.
				appLog.Error("initial feed load failed", err)
				meetings = nil
			}

			intents := selection.NewRecorder(recentIntents, selection.SinkFunc(func(in selection.Intent) {
				appLog.Debug("selection intent", "kind", string(in.Kind), "meeting_id", in.Meeting.ID)
			}))
			eng, err := a.newEngine("", "", intents)
			if err != nil {
				return err
			}

			srv := web.NewServer(a.cfg, eng, store.NewMemory(meetings), func(ctx context.Context) ([]model.Meeting, error) {
				return a.loadMeetings(ctx)
			})
			srv.UseIntents(intents)
			if a.journal != nil {
				srv.UseJournal(a.journal)
			}
			if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			appLog.Info("meetcal exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
