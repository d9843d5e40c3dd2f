package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"go-soft404/internal/batch"
	"go-soft404/internal/config"
	"go-soft404/internal/ioformats"
	"go-soft404/internal/models"
	"go-soft404/pkg/logger"
	"go-soft404/pkg/soft404"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("soft404", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML config file")
	in := fs.String("input", "", "file of urls (csv/xlsx with 'url' column, ndjson, or one per line)")
	out := fs.String("output", "", "output file (default stdout)")
	format := fs.String("format", "text", "output format: text or ndjson")
	concurrency := fs.Int("concurrency", 0, "worker concurrency (default from config)")
	summary := fs.Bool("summary", false, "print a summary table to stderr")
	verbose := fs.Bool("v", false, "debug logging and reasons in text output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Soft 404 (dead page) detector")
		fmt.Fprintln(stderr, "Usage: soft404 [flags] url [url...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	urls := fs.Args()
	if *in != "" {
		fromFile, err := ioformats.ReadURLs(*in)
		if err != nil {
			fmt.Fprintln(stderr, "read input:", err)
			return 2
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		fs.Usage()
		return 2
	}
	if *format != "text" && *format != "ndjson" {
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	l := logger.NewWith(stderr, cfg.Log.Level, cfg.Log.JSON)

	det, err := soft404.New(cfg, l)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(stderr, "create output:", err)
			return 1
		}
		defer f.Close()
		w = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.New(det,
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithRate(cfg.Batch.RatePerSecond, cfg.Batch.Burst),
		batch.WithLogger(l.With("component", "batch")),
	)
	results := runner.Run(ctx, urls)

	if *format == "ndjson" {
		if err := ioformats.WriteNDJSON(w, results); err != nil {
			fmt.Fprintln(stderr, "write output:", err)
			return 1
		}
	} else {
		printText(w, results, *verbose)
	}
	if *summary {
		printSummary(stderr, results)
	}

	code := 0
	for _, r := range results {
		switch {
		case r.Dead:
			return 1
		case inputError(r):
			code = 2
		}
	}
	return code
}

// inputError marks results that never reached the network.
func inputError(r models.CheckResult) bool {
	return r.Reason == "" && r.Error != ""
}

var (
	deadColor  = color.New(color.FgRed, color.Bold)
	aliveColor = color.New(color.FgGreen)
	errColor   = color.New(color.FgYellow)
)

func printText(w io.Writer, results []models.CheckResult, verbose bool) {
	for _, r := range results {
		label, c := "alive:", aliveColor
		switch {
		case r.Dead:
			label, c = "dead:", deadColor
		case inputError(r):
			fmt.Fprintf(w, "%s %s (%s)\n", errColor.Sprint("error:"), r.URL, r.Error)
			continue
		}
		line := fmt.Sprintf("%s %s", c.Sprint(label), r.URL)
		if verbose {
			why := string(r.Reason)
			if r.Error != "" {
				why = r.Error
			}
			line += fmt.Sprintf(" (%s, %s)", r.Verdict, why)
		}
		fmt.Fprintln(w, line)
	}
}

func printSummary(w io.Writer, results []models.CheckResult) {
	tbl := table.New("URL", "Verdict", "Reason", "Status", "Probe status", "Similarity").WithWriter(w)
	counts := map[models.Verdict]int{}
	for _, r := range results {
		counts[r.Verdict]++
		sim := "-"
		if r.Similarity != nil {
			sim = fmt.Sprintf("%.3f", *r.Similarity)
		}
		tbl.AddRow(r.URL, r.Verdict, r.Reason, r.TargetStatus, r.ProbeStatus, sim)
	}
	tbl.Print()
	fmt.Fprintf(w, "\n%d alive, %d dead, %d unknown\n",
		counts[models.Alive], counts[models.Dead], counts[models.Unknown])
}
