// Package cli provides output formatting for the hondana command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/pipeline"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n",
		response.Total, response.Query, response.QueryTime)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s", i+1, result.Title)
		if result.Author != "" {
			fmt.Fprintf(w, " by %s", result.Author)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "   Chapter %d: %s | Similarity: %.4f\n",
			result.ChapterOrdinal, result.ChapterTitle, result.Similarity)
		fmt.Fprintf(w, "\n%s\n\n", result.Snippet)
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// StatsSummary bundles the three stats sources for CLI display.
type StatsSummary struct {
	Store    *models.StoreStats `json:"store"`
	Index    interface{}        `json:"index"`
	Pipeline pipeline.Stats     `json:"pipeline"`
}

// WriteStats writes a stats summary to w in the given format.
func WriteStats(w io.Writer, s *StatsSummary, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "Books:           %d\n", s.Store.Books)
	fmt.Fprintf(w, "Chapters:        %d\n", s.Store.Chapters)
	fmt.Fprintf(w, "Chunks:          %d\n", s.Store.Chunks)
	fmt.Fprintf(w, "Total words:     %d\n", s.Store.TotalWords)
	fmt.Fprintf(w, "Processed books: %d\n", s.Pipeline.ProcessedBooks)
	fmt.Fprintf(w, "Emitted chunks:  %d\n", s.Pipeline.TotalChunks)
	return nil
}
