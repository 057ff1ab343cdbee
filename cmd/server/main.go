// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/swingdeck/internal/api/connect"
	"github.com/osa030/swingdeck/internal/app/library"
	"github.com/osa030/swingdeck/internal/app/notification"
	"github.com/osa030/swingdeck/internal/app/paging"
	"github.com/osa030/swingdeck/internal/app/playback"
	"github.com/osa030/swingdeck/internal/domain/catalog"
	"github.com/osa030/swingdeck/internal/infra/config"
	"github.com/osa030/swingdeck/internal/infra/logger"
)

var (
	app        = kingpin.New("swingdeck-server", "swingdeck catalog and queue server")
	configPath = app.Flag("config", "Path to config file").Default("config/swingdeck.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	noPing     = app.Flag("no-ping", "Skip the catalog connectivity check at startup").Bool()

	// check command
	checkCmd      = app.Command("check", "Check catalog connectivity and exit")
	checkMaxPages = checkCmd.Flag("max-pages", "Pages to load per resource (0 = until exhausted)").Default("1").Int()
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkCmd.FullCommand() {
		if err := check(cfg); err != nil {
			zlog.Error().Msgf("Catalog check failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// defaultParams returns the listing parameters configured for the catalog.
func defaultParams(cfg *config.Config) paging.Params {
	return paging.Params{
		PageSize:  cfg.Catalog.PageSize,
		SortBy:    cfg.Catalog.SortBy,
		SortOrder: cfg.SortOrder(),
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	client, err := library.NewClientFromConfig(ctx, cfg.Catalog.Backend)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}
	lib := library.New(client)

	if !*noPing {
		if err := pingCatalog(ctx, lib, defaultParams(cfg)); err != nil {
			return fmt.Errorf("catalog unreachable: %w", err)
		}
	}

	player := playback.NewController(playback.ControllerConfig{
		GapCorrection: time.Duration(cfg.Playback.GapCorrectionMs) * time.Millisecond,
		HistorySize:   cfg.Playback.HistorySize,
	})
	go logPlayerEvents(player)

	// Players are notified in registration order on every commit
	notifications := notification.NewManager()
	holder := playback.NewHolder(
		playback.LogPlayer{},
		player,
		playback.NewHookPlayer(cfg.Playback.Hooks.OnCommitted, time.Duration(cfg.Playback.HookTimeoutSec)*time.Second),
		notifications,
	)

	browseService := apiconnect.NewBrowseService(lib, defaultParams(cfg))
	queueService := apiconnect.NewQueueService(holder, notifications, player)

	authInterceptor := connect.WithInterceptors(apiconnect.NewTokenAuthInterceptor(cfg.Server.Token))
	if cfg.Server.Token == "" {
		zlog.Warn().Msg("No server token configured, API is open to all clients")
	}

	mux := http.NewServeMux()
	mux.Handle(browseService.Handler(authInterceptor))
	mux.Handle(queueService.Handler(authInterceptor))

	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// End watch streams first so Shutdown does not wait on them
	queueService.Close()
	notifications.Close()
	player.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// check walks every resource listing and reports the result.
func check(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := library.NewClientFromConfig(ctx, cfg.Catalog.Backend)
	if err != nil {
		return err
	}
	lib := library.New(client)
	params := defaultParams(cfg)

	fmt.Printf("Backend: %s (page size %d)\n", cfg.Catalog.Backend.Type, params.PageSize)

	artists, err := walk(ctx, paging.NewLoader(lib.Artists, params), *checkMaxPages)
	if err != nil {
		return err
	}
	fmt.Printf("  artists: %s\n", artists)

	albums, err := walk(ctx, paging.NewLoader(lib.Albums, params), *checkMaxPages)
	if err != nil {
		return err
	}
	fmt.Printf("  albums:  %s\n", albums)

	tracks, err := walk(ctx, paging.NewLoader(lib.Tracks, params), *checkMaxPages)
	if err != nil {
		return err
	}
	fmt.Printf("  tracks:  %s\n", tracks)
	return nil
}

// walk loads pages in order until the listing is exhausted or maxPages
// pages are loaded (0 means no limit), and summarizes what it saw.
func walk[T catalog.Item](ctx context.Context, loader *paging.Loader[T], maxPages int) (string, error) {
	pages := 0
	for maxPages == 0 || pages < maxPages {
		page, err := loader.LoadNext(ctx)
		if err != nil {
			return "", err
		}
		if page == nil {
			break
		}
		pages++
	}

	items := len(loader.Assembler().Items())
	if loader.Assembler().Exhausted() {
		return fmt.Sprintf("%d items (complete)", items), nil
	}
	return fmt.Sprintf("%d items in %d pages (more available)", items, pages), nil
}

// logPlayerEvents logs player events until the player is closed.
func logPlayerEvents(player *playback.Controller) {
	for e := range player.Events() {
		if e.Entry == nil {
			zlog.Info().Msgf("player: %s state=%s generation=%d", e.Type, e.State, e.Generation)
			continue
		}
		zlog.Info().Msgf("player: %s [%d] %s - %s state=%s generation=%d",
			e.Type, e.Index+1, e.Entry.Track.ArtistNames(), e.Entry.Track.Title, e.State, e.Generation)
	}
}

// pingCatalog loads the first artists page to verify the catalog is
// reachable. Transport failures are retried with backoff to ride out a
// server that is still starting; a rejection fails immediately.
func pingCatalog(ctx context.Context, lib *library.Library, params paging.Params) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying catalog check in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		page, err := lib.Artists.Load(ctx, nil, params)
		if err != nil {
			if paging.IsRemoteRejected(err) {
				return err
			}
			lastErr = err
			zlog.Warn().Msgf("Catalog check failed (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msgf("Catalog reachable: %d artists on first page", len(page.Items))
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
