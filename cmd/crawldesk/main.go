package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crawldesk/cmd/crawldesk/config"
	"crawldesk/cmd/crawldesk/console"
	"crawldesk/cmd/crawldesk/ui"
	"crawldesk/internal/api"
	"crawldesk/internal/attach"
	"crawldesk/internal/core"
	"crawldesk/internal/history"
	"crawldesk/internal/jobs"
	"crawldesk/internal/logging"
	"crawldesk/internal/plan"
	"crawldesk/internal/speech"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	backendURL string

	logger *zap.Logger
)

// rootCmd launches the interactive Smart Query console.
var rootCmd = &cobra.Command{
	Use:   "crawldesk",
	Short: "crawldesk - natural-language console for the crawl/extraction backend",
	Long: `crawldesk is an interactive console over the CaeliCrawler analysis backend.

Ask questions about extracted data in plain language, issue write commands
behind an explicit preview/confirm gate, or use plan mode to draft a query
in dialogue with the assistant.

Run without arguments to start the interactive console.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive console has its own UI; zap is for subcommands.
		if cmd.Use == "crawldesk" && cmd.CalledAs() == "crawldesk" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

// configCmd shows the active configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		fmt.Printf("config dir:  %s\n", dir)
		fmt.Printf("backend:     %s\n", cfg.BackendURL)
		fmt.Printf("theme:       %s\n", cfg.Theme)
		fmt.Printf("history db:  %s\n", cfg.ResolveHistoryPath(dir))
		fmt.Printf("debug logs:  %v\n", cfg.Logging.DebugMode)
		return nil
	},
}

// configInitCmd writes a default config file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		if _, err := os.Stat(config.Path(dir)); err == nil {
			return fmt.Errorf("config already exists at %s", config.Path(dir))
		}
		cfg := config.DefaultConfig()
		if backendURL != "" {
			cfg.BackendURL = backendURL
		}
		if err := cfg.Save(dir); err != nil {
			return err
		}
		logger.Info("config written", zap.String("path", config.Path(dir)))
		fmt.Printf("wrote %s\n", config.Path(dir))
		return nil
	},
}

var historyFavorites bool
var historyLimit int

// historyCmd lists past write commands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List executed write commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		store, err := history.Open(cfg.ResolveHistoryPath(dir))
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyFavorites, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no write commands recorded")
			return nil
		}

		styles := ui.NewStyles(ui.ThemeFor(cfg.Theme))
		table := ui.NewSimpleTable("", []string{"ID", "When", "★", "Command"})
		for _, e := range entries {
			star := ""
			if e.Favorite {
				star = "★"
			}
			table.AddRow(
				fmt.Sprintf("%d", e.ID),
				e.Timestamp.Local().Format("2006-01-02 15:04"),
				star,
				e.CommandText,
			)
		}
		fmt.Print(table.View(styles))
		return nil
	},
}

// historyFavoriteCmd toggles the star on an entry.
var historyFavoriteCmd = &cobra.Command{
	Use:   "favorite [id]",
	Short: "Toggle the favorite flag on a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		store, err := history.Open(cfg.ResolveHistoryPath(dir))
		if err != nil {
			return err
		}
		defer store.Close()

		fav, err := store.ToggleFavorite(cmd.Context(), id)
		if err != nil {
			return err
		}
		if fav {
			fmt.Printf("entry %d starred\n", id)
		} else {
			fmt.Printf("entry %d unstarred\n", id)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crawldesk version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("crawldesk " + version)
	},
}

func runConsole() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}

	if err := logging.Initialize(dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging unavailable: %v\n", err)
	}
	defer logging.CloseAll()
	logging.Get(logging.CategoryBoot).Info("crawldesk %s starting, backend %s", version, cfg.BackendURL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := api.New(api.Config{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})

	store, err := history.Open(cfg.ResolveHistoryPath(dir))
	if err != nil {
		return err
	}
	defer store.Close()

	attachments := attach.NewManager(client)
	tracker := core.NewProgressTracker(nil)
	plans := plan.NewEngine(client, nil)

	engine := core.NewEngine(client,
		core.WithPlanner(plans),
		core.WithAttachments(attachments),
		core.WithProgressTracker(tracker),
	)

	var voice *speech.Bridge
	if cfg.Speech.Command != "" {
		voice = speech.NewBridge(&speech.ExecTranscriber{
			Command: cfg.Speech.Command,
			Args:    cfg.Speech.Args,
		}, nil)
	}

	poller := jobs.NewPoller(client, nil)

	styles := ui.NewStyles(ui.ThemeFor(cfg.Theme))
	model := console.NewModel(ctx, console.Deps{
		Engine:      engine,
		Attachments: attachments,
		Voice:       voice,
		Plans:       plans,
		Tracker:     tracker,
		Poller:      poller,
		Client:      client,
		Store:       store,
		Styles:      styles,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console exited: %w", err)
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "override the backend base URL")

	historyCmd.Flags().BoolVar(&historyFavorites, "favorites", false, "only show starred entries")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show (0 = all)")

	configCmd.AddCommand(configInitCmd)
	historyCmd.AddCommand(historyFavoriteCmd)
	rootCmd.AddCommand(configCmd, historyCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
