package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/noveld/internal/cache"
	"github.com/brogergvhs/noveld/internal/config"
	"github.com/brogergvhs/noveld/internal/fetch"
	booksync "github.com/brogergvhs/noveld/internal/sync"
	"github.com/brogergvhs/noveld/internal/ui"
	"github.com/brogergvhs/noveld/internal/updater"
	"github.com/brogergvhs/noveld/internal/util"

	"github.com/spf13/cobra"
)

var (
	// runtime
	flagLibrary string
	flagWorkers int

	// fetch
	flagRPS        float64
	flagCloudflare bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string

	// external updater
	flagExternal        bool
	flagExternalCommand string

	flagCacheDir string
)

func init() {
	updateCmd := &cobra.Command{
		Use:   "update [dir|file...]",
		Short: "Re-synchronize existing EPUB files against their source sites. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runUpdate,
	}

	updateCmd.Flags().StringVar(&flagLibrary, "library", "", "folder holding the EPUB library")
	updateCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel book updates")

	updateCmd.Flags().Float64Var(&flagRPS, "rps", 0, "max requests per second per host")
	updateCmd.Flags().BoolVar(&flagCloudflare, "cloudflare", false, "enable cloudflare bypass transport")

	updateCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	updateCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	updateCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	updateCmd.Flags().BoolVar(&flagExternal, "external", false, "delegate unsupported sources to the external updater")
	updateCmd.Flags().StringVar(&flagExternalCommand, "external-command", "", "external updater command")

	updateCmd.Flags().StringVar(&flagCacheDir, "cache-dir", "", "override the image/metadata cache directory")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig:      flagIgnoreConfig,
		Debug:             flagDebug,
		Library:           flagLibrary,
		Workers:           flagWorkers,
		Cookie:            flagCookie,
		CookieFile:        flagCookieFile,
		UserAgent:         flagUserAgent,
		RequestsPerSecond: flagRPS,
		CloudflareBypass:  flagCloudflare,
		ExternalUpdater:   flagExternal,
		ExternalCommand:   flagExternalCommand,
		CacheDir:          flagCacheDir,
	})
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	books, err := collectBooks(args, cfg.Library)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		return fmt.Errorf("no .epub files found, nothing to update")
	}

	fmt.Printf("Found %d books.\n\n", len(books))

	client, err := fetch.New(fetch.Options{
		Timeout:           30 * time.Second,
		UserAgent:         cfg.UserAgent,
		Cookie:            cfg.Cookie,
		CookieFile:        cfg.CookieFile,
		CloudflareBypass:  cfg.CloudflareBypass,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Log:               logSvc,
	})
	if err != nil {
		return err
	}

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	util.SetupInterruptHandler(cfg.Library)

	pm := ui.NewProgressManager()

	native := &updater.Native{
		Client: client,
		Cache:  store,
		Log:    logSvc,
		Progress: func(title string) booksync.Progress {
			return pm.Register(title)
		},
	}

	var external *updater.External
	if cfg.ExternalUpdater {
		external = &updater.External{Command: cfg.ExternalCommand, Log: logSvc}
		if !external.Available() {
			logSvc.Warnf("external updater %q not found, unsupported sources will be skipped\n", cfg.ExternalCommand)
			external = nil
		}
	}
	up := &updater.Updater{Native: native, External: external}

	stats := &ui.Stats{}
	start := time.Now()

	var mu sync.Mutex
	outcomes := make(map[string]string, len(books))

	sem := make(chan struct{}, max(1, cfg.Workers))
	var wg sync.WaitGroup

	for _, path := range books {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := up.Update(ctx, path)

			stats.TotalBooks.Add(1)
			switch res.Kind {
			case booksync.Updated:
				stats.UpdatedBooks.Add(1)
				stats.TotalChapters.Add(int64(res.Count))
			case booksync.Failed:
				stats.TotalErrors.Add(1)
				logSvc.Errorf("%s: %v\n", filepath.Base(path), res.Err)
			}

			mu.Lock()
			outcomes[filepath.Base(path)] = res.String()
			mu.Unlock()
		}()
	}
	wg.Wait()
	pm.Close()

	fmt.Println()
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-50s %s\n", name, outcomes[name])
	}

	fmt.Println()
	fmt.Println("Update Summary:")
	fmt.Printf("Books:    %d (%d updated)\n", stats.TotalBooks.Load(), stats.UpdatedBooks.Load())
	fmt.Printf("Chapters: %d\n", stats.TotalChapters.Load())
	fmt.Printf("Data:     %s\n", util.Human(client.Bytes()))
	fmt.Printf("Errors:   %d\n", stats.TotalErrors.Load())
	fmt.Printf("Time:     %s\n", time.Since(start).Round(time.Second))

	if stats.TotalErrors.Load() == stats.TotalBooks.Load() {
		return fmt.Errorf("every book failed to update")
	}
	return nil
}

// collectBooks expands the positional args into a flat list of epub
// paths. No args means the configured library folder.
func collectBooks(args []string, library string) ([]string, error) {
	if len(args) == 0 {
		args = []string{library}
	}

	var books []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(arg, ".epub") {
				books = append(books, arg)
			}
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".epub") {
				books = append(books, filepath.Join(arg, e.Name()))
			}
		}
	}

	sort.Strings(books)
	return books, nil
}
