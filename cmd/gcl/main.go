// Command gcl indexes text files into a throwaway local index and prints
// every interval matching a GCL expression.
//
// Usage:
//
//	gcl -q '(>> (# 5) (... my eternize))' [-reverse] [-limit n] [-count] file...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "gcl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gcl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("q", "", "GCL expression to evaluate")
	reverse := fs.Bool("reverse", false, "list matches from last to first")
	limit := fs.Int("limit", 0, "print at most n matches (0 prints all)")
	count := fs.Bool("count", false, "print only the number of matches")
	stem := fs.Bool("stem", true, "stem terms with Porter2")
	stopWords := fs.Bool("stopwords", false, "drop English stop words")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" || fs.NArg() == 0 {
		fs.Usage()
		return errors.New("need -q and at least one file")
	}
	slog.SetDefault(logger.New(stderr, *logLevel, "text"))

	tok := tokenizer.New(tokenizer.Options{Stem: *stem, RemoveStopWords: *stopWords, MinLength: 1})
	exec := executor.NewSharded(nil, tok, 0)
	expr, err := exec.Prepare(*query)
	if err != nil {
		return describeParseError(*query, err)
	}

	dir, err := os.MkdirTemp("", "gcl-*")
	if err != nil {
		return fmt.Errorf("creating scratch index: %w", err)
	}
	defer os.RemoveAll(dir)

	engine, err := indexer.NewEngine(config.IndexerConfig{
		DataDir:        dir,
		SegmentMaxSize: math.MaxInt64,
		FlushInterval:  time.Hour,
	}, tok)
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc := indexer.Document{ID: path, Body: string(data)}
		if err := engine.IndexDocument(doc); err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
	}

	opts := executor.Options{Limit: math.MaxInt, Reverse: *reverse}
	if *limit > 0 {
		opts.Limit = *limit
	}
	if *count {
		opts.Limit = 0
	}
	result, err := executor.NewSharded([]executor.Index{engine}, tok, 0).Execute(context.Background(), expr, opts)
	if err != nil {
		return err
	}
	if *count {
		fmt.Fprintln(stdout, result.TotalHits)
		return nil
	}
	for _, hit := range result.Hits {
		fmt.Fprintf(stdout, "%s:%d-%d", hit.DocumentID, hit.Start, hit.End)
		if hit.Value != 0 {
			fmt.Fprintf(stdout, " [%g]", hit.Value)
		}
		fmt.Fprintf(stdout, " %q\n", hit.Text)
	}
	return nil
}

// describeParseError renders the query with a caret under the offending
// byte.
func describeParseError(query string, err error) error {
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		return err
	}
	return fmt.Errorf("%s\n  %s\n  %s^", pe.Reason, query, strings.Repeat(" ", pe.Offset))
}
