package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tweetwatch/internal/alert"
	"tweetwatch/internal/analyze"
	"tweetwatch/internal/config"
	"tweetwatch/internal/database"
	"tweetwatch/internal/enrich"
	"tweetwatch/internal/fetch"
	"tweetwatch/internal/poll"
	"tweetwatch/internal/queue"
	"tweetwatch/internal/scrape"
	"tweetwatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tweetwatch",
	Short:   "Monitor social accounts, classify posts, alert on risk",
	Long:    "tweetwatch polls monitored accounts, deduplicates new posts, classifies them with an LLM, and sends WhatsApp alerts when the policy approves.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tweetwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tweetwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure accounts, the mirror URL, API keys, and alert recipients.")
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the poller, batch worker, and read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p := buildPipeline(db)
		p.tasks.Start()
		p.scheduler.SyncSources()

		ctx, cancel := context.WithCancel(context.Background())
		go p.scheduler.Run(ctx)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: server.New(db, p.client, p.summarizer).Handler(),
		}
		go func() {
			log.Printf("API listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("API server error: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")

		cancel()
		p.tasks.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single poll cycle and process its batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p := buildPipeline(db)
		p.tasks.Start()
		p.scheduler.SyncSources()

		if err := p.scheduler.RunCycle(context.Background()); err != nil {
			return err
		}

		// Let the worker drain what the cycle queued before stopping.
		for p.tasks.Len() > 0 {
			time.Sleep(200 * time.Millisecond)
		}
		p.tasks.Stop()
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List monitored sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		all, _ := cmd.Flags().GetBool("all")
		sources, err := db.ListSources(!all)
		if err != nil {
			return err
		}

		if len(sources) == 0 {
			fmt.Println("No sources configured. Add one with 'tweetwatch sources add <handle>'.")
			return nil
		}
		for _, s := range sources {
			state := "active"
			if !s.Active {
				state = "inactive"
			}
			last := "never"
			if s.LastPolledAt != nil {
				last = *s.LastPolledAt
			}
			fmt.Printf("@%-20s %-8s last polled: %s\n", s.Handle, state, last)
		}
		return nil
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <handle>",
	Short: "Add a monitored source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		name, _ := cmd.Flags().GetString("name")
		var displayName *string
		if name != "" {
			displayName = &name
		}
		if _, err := db.InsertSource(args[0], displayName); err != nil {
			return err
		}
		fmt.Printf("Added @%s\n", args[0])
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <handle>",
	Short: "Deactivate a monitored source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := db.DeactivateSource(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("source @%s not found", args[0])
		}
		fmt.Printf("Deactivated @%s\n", args[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search the mirror for a keyword and persist the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, _ := cmd.Flags().GetInt("count")
		client := scrape.NewClient(cfg.Scraper.MirrorURL, cfg.ScraperTimeout())

		posts, err := client.Search(context.Background(), args[0], count)
		if err != nil {
			return fmt.Errorf("searching for %q: %w", args[0], err)
		}

		searchID, err := db.InsertKeywordSearch(args[0])
		if err != nil {
			return err
		}
		for _, p := range posts {
			if _, err := db.InsertSearchResult(searchID, p.ExternalID, p.Author, p.Text, nil, p.Link, p.PostedAt); err != nil {
				log.Printf("Error storing search result %s: %v", p.ExternalID, err)
			}
			fmt.Printf("@%s: %s\n  %s\n", p.Author, p.Text, p.Link)
		}
		fmt.Printf("%d result(s) for %q\n", len(posts), args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Sources:  %d (%d active)\n", stats.TotalSources, stats.ActiveSources)
		fmt.Printf("Posts:    %d (%d analyzed, %d notified)\n", stats.TotalPosts, stats.AnalyzedPosts, stats.NotifiedPosts)
		fmt.Printf("Searches: %d\n", stats.KeywordSearches)
		return nil
	},
}

func init() {
	sourcesCmd.Flags().Bool("all", false, "Include deactivated sources")
	sourcesAddCmd.Flags().String("name", "", "Display name for the source")
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
	searchCmd.Flags().Int("count", 20, "Maximum results")
}

// pipeline groups the constructed components. Everything is built here
// and injected; no package-level singletons.
type pipeline struct {
	client     *scrape.Client
	summarizer poll.Summarizer
	tasks      *queue.Queue
	scheduler  *poll.Scheduler
}

func buildPipeline(db *database.DB) *pipeline {
	client := scrape.NewClient(cfg.Scraper.MirrorURL, cfg.ScraperTimeout())

	classProvider := analyze.CreateProvider(
		cfg.Analysis.Model, cfg.Analysis.BaseURL, cfg.Analysis.APIKeyEnv, cfg.Analysis.Temperature)
	classifier := analyze.NewClassifier(classProvider, cfg.Analysis.Subject, cfg.Analysis.Topics)

	var summarizer poll.Summarizer
	if cfg.Summary.Enabled {
		sumProvider := analyze.CreateProvider(
			cfg.Summary.Model, cfg.Analysis.BaseURL, cfg.Analysis.APIKeyEnv, cfg.Summary.Temperature)
		if sumProvider != nil {
			var links analyze.LinkFetcher
			if cfg.Summary.ExpandLinks {
				links = fetch.NewLinkContextFetcher(0)
			}
			summarizer = analyze.NewSummarizer(sumProvider, links)
		}
	}

	notifier := alert.NewWhatsAppNotifier(
		os.Getenv(cfg.Alerts.AccountSIDEnv),
		os.Getenv(cfg.Alerts.AuthTokenEnv),
		cfg.Alerts.WhatsAppFrom,
		cfg.Alerts.Recipients,
	)

	enricher := enrich.New(db, classifier, notifier, alert.DefaultPolicy(cfg.Analysis.MinUrgency))

	tasks := queue.New(enricher.ProcessBatch, queue.Options{
		FirstWait: cfg.FirstWait(),
		FillWait:  cfg.FillWait(),
		MaxBatch:  cfg.Batch.MaxBatch,
	})

	scheduler := poll.NewScheduler(db, client, summarizer, tasks, poll.Options{
		Interval:    cfg.PollInterval(),
		SourceDelay: cfg.SourceDelay(),
		Backoff:     cfg.Backoff(),
		Retention:   cfg.Retention(),
		FetchLimit:  cfg.Poll.FetchLimit,
		Handles:     cfg.Accounts,
	})

	return &pipeline{client: client, summarizer: summarizer, tasks: tasks, scheduler: scheduler}
}

func openDB() (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "tweetwatch.db")
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
