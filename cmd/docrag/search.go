package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/spf13/cobra"
)

var (
	searchLimit         int
	searchSelectedText  string
	searchContextWindow int
	searchRerank        bool
	searchJSON          bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.IntVarP(&searchLimit, "limit", "n", retrieval.DefaultLimit, "number of passages")
	f.StringVar(&searchSelectedText, "selected-text", "", "page text the question refers to")
	f.IntVar(&searchContextWindow, "context-window", 0, "neighbouring chunks to include on each side")
	f.BoolVar(&searchRerank, "rerank", false, "reorder extra candidates by query term overlap")
	f.BoolVar(&searchJSON, "json", false, "print the result as JSON")
}

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Search the collection from the command line",
	Long: `Embed a question and print the nearest passages with their citations.

Examples:
  docrag search "What is a ROS 2 node?"
  docrag search --selected-text "ros2 topic echo" "What does this print?"
  docrag search -n 3 --context-window 1 --rerank --json "costmap layers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openEmbedder(); err != nil {
		return err
	}
	if err := a.openStore(); err != nil {
		return err
	}
	searcher, err := retrieval.NewSearcher(a.embedder, a.store, a.logger.Named("retrieval"))
	if err != nil {
		return err
	}

	res, err := searcher.Search(ctx, retrieval.Query{
		Message:       strings.Join(args, " "),
		SelectedText:  searchSelectedText,
		Limit:         searchLimit,
		ContextWindow: searchContextWindow,
		Rerank:        searchRerank,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, renderResult(res))
	return nil
}
