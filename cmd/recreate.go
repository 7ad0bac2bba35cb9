package cmd

import (
	"context"
	"fmt"
	"path/filepath"
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

func init() {
	recreateCmd := &cobra.Command{
		Use:   "recreate <file.epub>",
		Short: "Stash a possibly corrupted EPUB aside and rebuild it from scratch",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecreate,
	}
	rootCmd.AddCommand(recreateCmd)
}

func runRecreate(cmd *cobra.Command, args []string) error {
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

	util.SetupInterruptHandler(filepath.Dir(args[0]))

	pm := ui.NewProgressManager()
	native := &updater.Native{
		Client: client,
		Cache:  store,
		Log:    logSvc,
		Progress: func(title string) booksync.Progress {
			return pm.Register(title)
		},
	}

	b, path, err := native.StashAndRecreate(context.Background(), args[0])
	pm.Close()
	if err != nil {
		return err
	}

	fmt.Printf("Recreated %q with %d chapters at %s (%s fetched)\n",
		b.Title, len(b.Chapters), path, util.Human(client.Bytes()))
	return nil
}
