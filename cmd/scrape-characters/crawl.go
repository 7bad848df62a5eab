package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/scrape-characters/internal/logger"
	"github.com/PentesterFlow/scrape-characters/internal/output"
	"github.com/PentesterFlow/scrape-characters/internal/progress"
	"github.com/PentesterFlow/scrape-characters/internal/shutdown"
	"github.com/PentesterFlow/scrape-characters/internal/state"
	"github.com/PentesterFlow/scrape-characters/pkg/crawler"
)

var (
	// Crawl flags
	delay           int
	maxIterations   int
	ignoreHashes    bool
	timeout         int
	userAgent       string
	headers         []string
	retries         int
	maxBodyBytes    int64
	normalization   string
	excludePatterns []string

	// Output flags
	outputFile   string
	outputFormat string
	hexOutput    bool
	noColor      bool
	archivePath  string

	// Display flags
	showProgress bool
)

func newCrawlCmd() *cobra.Command {
	crawlCmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and collect its characters",
		Long: `Crawl the origin of <url>, visiting at most --max-iterations pages, and
report the unique characters, the accepted links and the rejected links.

Exit status is 0 on success, 2 when some pages failed and 1 on fatal errors.`,
		RunE: runCrawl,
	}

	// Crawl flags
	crawlCmd.Flags().IntVarP(&delay, "delay", "d", 5000, "Minimum milliseconds between requests")
	crawlCmd.Flags().IntVarP(&maxIterations, "max-iterations", "m", 150, "Maximum number of pages to visit")
	crawlCmd.Flags().BoolVar(&ignoreHashes, "ignore-hashes", true, "Reject links with a #fragment instead of stripping it")
	crawlCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Request timeout in seconds")
	crawlCmd.Flags().StringVarP(&userAgent, "user-agent", "u", "", "User-Agent header")
	crawlCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header as 'Name: value' (repeatable)")
	crawlCmd.Flags().IntVar(&retries, "retries", 0, "Retries for network, timeout and 5xx failures")
	crawlCmd.Flags().Int64Var(&maxBodyBytes, "max-body-bytes", 5<<20, "Truncate response bodies beyond this size")
	crawlCmd.Flags().StringVar(&normalization, "normalize", "none", "Unicode normalization of page text (none, nfc, nfkc)")
	crawlCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "URL patterns to exclude (regex)")

	// Output flags
	crawlCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	crawlCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format ("+formatNames()+")")
	crawlCmd.Flags().BoolVarP(&hexOutput, "hex", "x", false, "Print characters as hexadecimal code points")
	crawlCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
	crawlCmd.Flags().StringVar(&archivePath, "archive", "", "Archive the run in this database file")

	// Display flags
	crawlCmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress line during crawling")

	return crawlCmd
}

// buildConfig merges the config file, if any, with the flags that were set
// explicitly. Flags take precedence.
func buildConfig(cmd *cobra.Command, args []string) (*crawler.Config, error) {
	config := crawler.DefaultConfig()
	if configFile != "" {
		fileConfig, err := crawler.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if len(args) > 1 {
		warnf("You provided %d URLs, but only the first one is crawled.", len(args))
	}
	if len(args) > 0 {
		config.Target = args[0]
	}
	if config.Target == "" {
		return nil, fmt.Errorf("please provide a URL")
	}

	flags := cmd.Flags()
	if flags.Changed("delay") {
		config.Delay = delay
	}
	if flags.Changed("max-iterations") {
		config.MaxIterations = maxIterations
	}
	if flags.Changed("ignore-hashes") {
		config.IgnoreHashes = ignoreHashes
	}
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("user-agent") {
		config.UserAgent = userAgent
	}
	if flags.Changed("header") {
		parsed, err := parseHeaders(headers)
		if err != nil {
			return nil, err
		}
		if config.CustomHeaders == nil {
			config.CustomHeaders = make(map[string]string)
		}
		for k, v := range parsed {
			config.CustomHeaders[k] = v
		}
	}
	if flags.Changed("retries") {
		config.Retries = retries
	}
	if flags.Changed("max-body-bytes") {
		config.MaxBodyBytes = maxBodyBytes
	}
	if flags.Changed("normalize") {
		config.Normalization = normalization
	}
	if flags.Changed("exclude") {
		config.ExcludePatterns = append(config.ExcludePatterns, excludePatterns...)
	}
	if flags.Changed("output") {
		config.Output.File = outputFile
	}
	if flags.Changed("format") {
		config.Output.Format = outputFormat
	}
	if flags.Changed("hex") {
		config.Output.Hex = hexOutput
	}
	if flags.Changed("no-color") {
		config.Output.NoColor = noColor
	}
	if flags.Changed("archive") {
		config.Archive = archivePath
	}
	if flags.Changed("progress") {
		config.Progress = showProgress
	}
	if verbose {
		config.Verbose = true
	}
	if debug {
		config.Debug = true
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// parseHeaders parses 'Name: value' pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	parsed := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		parsed[name] = strings.TrimSpace(value)
	}
	return parsed, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:     logger.LevelFor(config.Verbose, config.Debug),
		Pretty:    true,
		Component: "cli",
	})

	handler := shutdown.New(cmd.Context(), shutdown.Config{
		OnSignal: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %v, stopping...\n", sig)
		},
		OnForce: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %v again, exiting immediately\n", sig)
			os.Exit(exitFatal)
		},
	})
	defer func() {
		for _, err := range handler.Shutdown() {
			log.Warnf("Cleanup failed: %v", err)
		}
	}()

	opts := []crawler.Option{
		crawler.WithConfig(config),
		crawler.WithLogger(log.WithComponent("crawler")),
	}

	if config.Archive != "" {
		store, err := state.NewBoltStore(config.Archive)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		handler.Register("archive", func(_ context.Context) error { return store.Close() })
		opts = append(opts, crawler.WithStore(store))
	}

	// The progress line and log lines share stderr.
	var display *progress.Display
	if config.Progress && !config.Verbose && !config.Debug {
		display = progress.New()
		opts = append(opts, crawler.WithObserver(func(p crawler.Progress) {
			display.Update(progress.Stats{
				Iterations:    p.Iteration,
				MaxIterations: p.MaxIterations,
				Visited:       p.Visited,
				Legit:         p.Legit,
				Invalid:       p.Invalid,
				Characters:    p.Characters,
				Errors:        p.Errors,
				Frontier:      p.Frontier,
			})
		}))
	}

	c, err := crawler.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	handler.RegisterFunc("fetcher", c.Close)

	if display != nil {
		display.Start(config.Target)
	}
	result, err := c.Crawl(handler.Context())
	if display != nil {
		display.Stop()
	}
	if err != nil {
		return err
	}
	if handler.Cancelled() {
		log.Warnf("Interrupted after %d iterations, reporting partial results", result.Snapshot.Iterations)
	}

	if err := writeReport(config, result.Report(config.Output.Hex)); err != nil {
		return err
	}

	if result.HasErrors() {
		return &exitError{
			code: exitPageErrors,
			msg:  fmt.Sprintf("%d of %d pages failed", len(result.Snapshot.PageErrors), result.Snapshot.Iterations),
		}
	}
	log.Info("Program exited successfully.")
	return nil
}

// writeReport renders report to the configured file, or stdout.
func writeReport(config *crawler.Config, report *output.Report) error {
	format, err := output.ParseFormat(config.Output.Format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	var file *os.File
	noColor := config.Output.NoColor
	if config.Output.File != "" {
		file, err = os.Create(config.Output.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		w = file
		noColor = true
	}

	writer, err := output.NewWriter(w, output.Config{
		Format:  format,
		Pretty:  config.Output.Pretty,
		NoColor: noColor,
	})
	if err != nil {
		if file != nil {
			file.Close()
		}
		return err
	}

	if err := writer.WriteReport(report); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if file == nil {
		return writer.Flush()
	}
	return writer.Close()
}
