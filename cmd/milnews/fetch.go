package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deusflow/milnews/internal/app"
)

var fetchFlags struct {
	q, region, domain, source string
	page                      int
	json                      bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all feeds once and print one page of results",
	RunE:  runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchFlags.q, "q", "", "text search over title and summary")
	f.StringVar(&fetchFlags.region, "region", "", "region filter")
	f.StringVar(&fetchFlags.domain, "domain", "", "domain filter")
	f.StringVar(&fetchFlags.source, "source", "", "exact source name")
	f.IntVar(&fetchFlags.page, "page", 1, "page number")
	f.BoolVar(&fetchFlags.json, "json", false, "print JSON instead of text")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc := app.New(cfg)
	defer svc.Close()

	listing, err := svc.Query(cmd.Context(), app.Params{
		Q:      fetchFlags.q,
		Region: fetchFlags.region,
		Domain: fetchFlags.domain,
		Source: fetchFlags.source,
		Page:   fetchFlags.page,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fetchFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}
	printListing(out, listing)
	return nil
}

func printListing(w io.Writer, l app.Listing) {
	fmt.Fprintf(w, "%d articles, page %d/%d\n\n", l.Total, l.Page, l.TotalPages)
	for _, a := range l.Items {
		label := a.PublishedLabel()
		if label == "" {
			label = "unknown time"
		}
		fmt.Fprintf(w, "%s  [%s] %s\n    %s\n", label, a.Source, a.Title, a.Link)
	}

	if len(l.Trends.TopSources) > 0 {
		fmt.Fprintln(w, "\nTop sources:")
		for _, c := range l.Trends.TopSources {
			fmt.Fprintf(w, "  %-30s %d\n", c.Name, c.Count)
		}
	}
	if len(l.Trends.TopKeywords) > 0 {
		words := make([]string, 0, len(l.Trends.TopKeywords))
		for _, c := range l.Trends.TopKeywords {
			words = append(words, fmt.Sprintf("%s (%d)", c.Name, c.Count))
		}
		fmt.Fprintf(w, "\nTrending: %s\n", strings.Join(words, ", "))
	}
}
