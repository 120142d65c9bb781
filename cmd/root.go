// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scrapecast/internal/config"
	"scrapecast/internal/extract"
	"scrapecast/internal/hosts"
	"scrapecast/internal/httputil"
	"scrapecast/internal/logging"
	"scrapecast/internal/provider"
	"scrapecast/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDownload string
	flagLanguage string
	flagNoSubs   bool
	flagProvider string
	flagPlayer   string
	flagJSON     bool
	flagDebug    bool
	flagStore    string
)

// downloadToConfigDir is the value of a bare -d.
const downloadToConfigDir = "-"

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// app holds the services shared by every command. It is built lazily so
// commands like version never open the store.
type app struct {
	fetcher    *httputil.Fetcher
	normalizer *hosts.Normalizer
	resolver   *extract.Resolver
	store      store.Store
	registry   *provider.Registry
}

var services *app

var rootCmd = &cobra.Command{
	Use:   "scrapecast [query]",
	Short: "Browse and stream Spanish-language catalogs from the terminal",
	Long: heredoc.Doc(`
		Scrapecast scrapes streaming sites and Invidious instances, resolves
		embed chains down to playable links and hands them to mpv, vlc or ffmpeg.
	`),
	Example: heredoc.Doc(`
		$ scrapecast -p sololatino "the office"
		$ scrapecast catalog -p cablevisionhd
		$ scrapecast links -p pelisplushd https://pelisplushd.bz/pelicula/dune --json
		$ scrapecast serve --listen 127.0.0.1:8080
	`),
	Args:               cobra.ArbitraryArgs,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: closeServices,
	RunE:               searchRun,
	SilenceUsage:       true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "scrapecast", Version)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so in-flight fetches stop.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDownload, "download", "d", "", "Download to path instead of playing (bare -d uses download_dir)")
	rootCmd.PersistentFlags().Lookup("download").NoOptDefVal = downloadToConfigDir
	rootCmd.PersistentFlags().StringVarP(&flagLanguage, "language", "l", "", "Subtitle language (default: spanish)")
	rootCmd.PersistentFlags().BoolVarP(&flagNoSubs, "no-subs", "n", false, "Disable subtitles")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "Provider name, see 'scrapecast providers'")
	rootCmd.PersistentFlags().StringVar(&flagPlayer, "player", "", "Media player: mpv | vlc | iina | celluloid")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Print results as JSON instead of prompting")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Subscription store: sqlite | redis | memory")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(mirrorsCmd)
	rootCmd.AddCommand(subsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagPlayer != "" {
		cfg.Player = flagPlayer
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagLanguage != "" {
		cfg.SubsLanguage = flagLanguage
	}
	if flagStore != "" {
		cfg.StoreDriver = flagStore
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(logging.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	return nil
}

// getServices builds the shared services on first use.
func getServices(ctx context.Context) (*app, error) {
	if services != nil {
		return services, nil
	}

	normalizer, err := hosts.WithFile(cfg.HostRulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading host rules: %w", err)
	}

	fetcher := httputil.NewFetcher(httputil.Options{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout(),
		RatePerSecond: cfg.RatePerSecond,
		RespectRobots: cfg.RespectRobots,
	})
	resolver := extract.NewResolver(fetcher, extract.Options{
		MaxDepth:   cfg.MaxDepth,
		UserAgent:  cfg.UserAgent,
		Normalizer: normalizer,
	})

	storePath, err := cfg.ResolveStorePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.Options{Driver: cfg.StoreDriver, Path: storePath, RedisAddr: cfg.RedisAddr})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.StoreDriver, err)
	}

	registry, err := provider.Build(provider.Deps{
		Fetcher:      fetcher,
		Resolver:     resolver,
		Store:        st,
		Instances:    cfg.InvidiousInstances,
		ProbeTimeout: cfg.ProbeTimeout(),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	services = &app{
		fetcher:    fetcher,
		normalizer: normalizer,
		resolver:   resolver,
		store:      st,
		registry:   registry,
	}
	return services, nil
}

// currentProvider returns the provider selected by -p or the config file.
func currentProvider(ctx context.Context) (provider.Provider, *app, error) {
	a, err := getServices(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := a.registry.Get(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}
	return p, a, nil
}

func closeServices(cmd *cobra.Command, args []string) error {
	if services == nil {
		return nil
	}
	err := services.store.Close()
	services = nil
	return err
}

// debugf logs a message at debug level.
func debugf(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}
