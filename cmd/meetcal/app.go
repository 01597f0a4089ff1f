package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	goversion "go.hein.dev/go-version"

	"meetcal/internal/calendar"
	"meetcal/internal/config"
	"meetcal/internal/engine"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/selection"
	"meetcal/internal/store"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	configPath string
	feeds      []string
	logLevel   string
}

// app is what subcommands need after config and feeds are loaded.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	fetcher *ics.Fetcher
	sources []ics.Source
	// journal is nil unless the config names a database.
	journal *store.Journal
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "meetcal",
		Short:         "Week and month meeting calendars with a meeting lifecycle.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "./meetcal.yaml", "Path to config file")
	cmd.PersistentFlags().StringSliceVar(&g.feeds, "feed", nil, "ICS feed path or URL (repeatable; replaces configured feeds)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(
		newRenderCommand(g),
		newTransitionCommand(g),
		newServeCommand(g),
		newObligationsCommand(g),
		newVersionCommand(),
	)
	return cmd
}

func (g *globalOptions) load() (*app, error) {
	path, err := homedir.Expand(g.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	appLog.Configure(appLog.ParseLevel(level), cfg.Log.Format)

	if len(g.feeds) > 0 {
		cfg.Feeds = cfg.Feeds[:0]
		for i, f := range g.feeds {
			cfg.Feeds = append(cfg.Feeds, config.FeedConfig{ID: fmt.Sprintf("cli-%d", i+1), URL: f})
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	sources := make([]ics.Source, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if f.URL == "" {
			continue
		}
		u, err := homedir.Expand(f.URL)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", f.ID, err)
		}
		sources = append(sources, ics.Source{ID: f.ID, URL: u})
	}

	appLog.Debug("effective config",
		"config_path", path,
		"timezone", loc.String(),
		"week_start", cfg.WeekStart,
		"default_view", cfg.DefaultView,
		"max_visible", cfg.MaxVisibleOrDefault(),
		"feed_count", len(sources),
	)

	cacheDir, err := homedir.Expand(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		loc:     loc,
		fetcher: ics.NewFetcher(cacheDir),
		sources: sources,
	}
	if cfg.Database != "" {
		dbPath, err := homedir.Expand(cfg.Database)
		if err != nil {
			return nil, err
		}
		if a.journal, err = store.OpenJournal(dbPath); err != nil {
			return nil, err
		}
		appLog.Debug("transition journal opened", "path", dbPath)
	}
	return a, nil
}

func (a *app) close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		appLog.Warn("failed to close transition journal", "err", err.Error())
	}
}

// loadMeetings reads every feed. Partial failures are logged; only a total
// failure is an error.
func (a *app) loadMeetings(ctx context.Context) ([]model.Meeting, error) {
	meetings, errs := a.fetcher.LoadAll(ctx, a.sources)
	if len(errs) > 0 && len(errs) == len(a.sources) {
		return nil, fmt.Errorf("all %d feeds failed: %w", len(errs), errors.Join(errs...))
	}
	if a.journal != nil {
		return a.journal.Overlay(ctx, meetings)
	}
	return meetings, nil
}

func (a *app) newEngine(mode, anchor string, sink selection.Sink) (*engine.Engine, error) {
	if mode == "" {
		mode = a.cfg.DefaultView
	}
	vm, err := calendar.ParseViewMode(mode)
	if err != nil {
		return nil, err
	}
	opts := engine.Options{
		Mode:        vm,
		SundayFirst: a.cfg.FirstWeekday() == time.Sunday,
		MaxVisible:  a.cfg.MaxVisibleOrDefault(),
		Location:    a.loc,
		Sink:        sink,
	}
	if anchor != "" {
		d, err := calendar.ParseDate(anchor)
		if err != nil {
			return nil, err
		}
		opts.Anchor = d
	}
	return engine.New(opts), nil
}

func newVersionCommand() *cobra.Command {
	shortened := false
	output := "json"

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Example: `
meetcal version --short
`,
		Run: func(cmd *cobra.Command, _ []string) {
			resp := goversion.FuncWithOutput(shortened, version, commit, date, output)
			_, _ = fmt.Fprint(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	return cmd
}
