package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/brogergvhs/noveld/internal/cache"
	"github.com/brogergvhs/noveld/internal/config"

	"github.com/spf13/cobra"
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the books known to the local cache",
		RunE:  runList,
	}
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
	})
	if err != nil {
		return err
	}

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return err
	}

	books, err := store.Books()
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("Cache is empty. Run `noveld update` or `noveld create` first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCHAPTERS\tLAST CHAPTER")
	for _, b := range books {
		last := "-"
		if d := b.LatestChapterDate(); !d.IsZero() {
			last = d.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, len(b.Chapters), last)
	}
	return w.Flush()
}
