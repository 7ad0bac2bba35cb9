package cmd

import (
	"context"
	"fmt"
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
	flagCreateURL    string
	flagCreateOutput string
	flagCreateName   string
)

func init() {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Download a book from its source site and write it as a fresh EPUB",
		RunE:  runCreate,
	}

	createCmd.Flags().StringVarP(&flagCreateURL, "url", "u", "", "book overview page URL (required)")
	createCmd.Flags().StringVarP(&flagCreateOutput, "output", "o", "", "output folder (default: configured library)")
	createCmd.Flags().StringVar(&flagCreateName, "filename", "", "output file name (default: derived from the title)")
	_ = createCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
	})
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)

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

	dir := flagCreateOutput
	if dir == "" {
		dir = cfg.Library
	}
	util.SetupInterruptHandler(dir)

	pm := ui.NewProgressManager()
	native := &updater.Native{
		Client: client,
		Cache:  store,
		Log:    logSvc,
		Progress: func(title string) booksync.Progress {
			return pm.Register(title)
		},
	}

	b, path, err := native.Create(context.Background(), dir, flagCreateName, flagCreateURL)
	pm.Close()
	if err != nil {
		return err
	}

	fmt.Printf("Created %q with %d chapters at %s (%s fetched)\n",
		b.Title, len(b.Chapters), path, util.Human(client.Bytes()))
	return nil
}
