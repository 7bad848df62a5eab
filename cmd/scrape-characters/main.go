package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/scrape-characters/internal/output"
)

const programName = "scrape-characters"

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
)

// Exit codes.
const (
	exitOK         = 0
	exitFatal      = 1
	exitPageErrors = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Collect the unique characters of a website",
		Long: `scrape-characters crawls a single web origin from a seed URL, following
same-origin links, and reports the distinct characters found in the visible
text of the visited pages together with the links it accepted and rejected.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	rootCmd.AddCommand(newCrawlCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	code := exitCode(err)

	switch {
	case code == exitOK:
		return exitOK
	case code == exitPageErrors:
		warnf("%s", err)
	default:
		errorf("%s", err)
	}
	warnf("Program exited with errors.")
	return code
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s (%s): %s\n", color.YellowString("warning"), programName, fmt.Sprintf(format, args...))
}

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s (%s): %s\n", color.RedString("error"), programName, fmt.Sprintf(format, args...))
}

// formatNames lists the report formats for flag help.
func formatNames() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
