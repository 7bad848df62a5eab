package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/scrape-characters/internal/output"
	"github.com/PentesterFlow/scrape-characters/internal/state"
	"github.com/PentesterFlow/scrape-characters/pkg/crawler"
)

var (
	// Status flags
	statusArchive string
	statusRunID   string
	statusList    bool
	statusFormat  string
	statusHex     bool
)

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show an archived crawl",
		Long:  "Show the latest, or a specific, crawl run stored in an archive written by 'crawl --archive'.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	statusCmd.Flags().StringVar(&statusArchive, "archive", "", "Archive database file")
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Run ID (default: latest)")
	statusCmd.Flags().BoolVarP(&statusList, "list", "l", false, "List archived runs")
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format ("+formatNames()+")")
	statusCmd.Flags().BoolVarP(&statusHex, "hex", "x", false, "Print characters as hexadecimal code points")
	statusCmd.MarkFlagRequired("archive")

	return statusCmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(statusArchive); err != nil {
		return fmt.Errorf("archive %s: %w", statusArchive, err)
	}

	store, err := state.NewBoltStore(statusArchive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer store.Close()

	if statusList {
		runs, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		printRuns(runs)
		return nil
	}

	var record *state.RunRecord
	if statusRunID != "" {
		record, err = store.Load(statusRunID)
	} else {
		record, err = store.Latest()
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	format, err := output.ParseFormat(statusFormat)
	if err != nil {
		return err
	}

	result := &crawler.Result{
		RunID:      record.ID,
		Seed:       record.Seed,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		Cancelled:  record.Cancelled,
		Snapshot:   record.Snapshot,
	}

	writer, err := output.NewWriter(os.Stdout, output.Config{Format: format, Pretty: true})
	if err != nil {
		return err
	}
	if err := writer.WriteReport(result.Report(statusHex)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return writer.Flush()
}

func printRuns(runs []*state.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Seed", "Started", "Iterations", "Characters", "Errors", "Cancelled"})

	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Seed,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Snapshot.Iterations,
			len(r.Snapshot.Characters),
			len(r.Snapshot.PageErrors),
			strconv.FormatBool(r.Cancelled),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
