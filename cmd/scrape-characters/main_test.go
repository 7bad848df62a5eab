package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PentesterFlow/scrape-characters/internal/output"
	"github.com/PentesterFlow/scrape-characters/internal/state"
	"github.com/PentesterFlow/scrape-characters/pkg/crawler"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"fatal", errors.New("boom"), exitFatal},
		{"page errors", &exitError{code: exitPageErrors, msg: "1 of 2 pages failed"}, exitPageErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"Accept-Language: el", "X-Empty:", " Cookie : a=b; c=d"})
	if err != nil {
		t.Fatalf("parseHeaders() error = %v", err)
	}

	want := map[string]string{"Accept-Language": "el", "X-Empty": "", "Cookie": "a=b; c=d"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("header %q = %q, want %q", k, got[k], v)
		}
	}

	for _, bad := range []string{"no-colon", ": value"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) should fail", bad)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.yaml")
	data := "target: https://from-file.example\ndelay: 100\nmax_iterations: 9\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	crawlCmd, _, err := root.Find([]string{"crawl"})
	if err != nil {
		t.Fatal(err)
	}
	if err := root.PersistentFlags().Parse([]string{"--config", path}); err != nil {
		t.Fatal(err)
	}
	if err := crawlCmd.Flags().Parse([]string{"--max-iterations", "3", "--timeout", "2", "-H", "X-Test: 1"}); err != nil {
		t.Fatal(err)
	}
	defer func() { configFile = "" }()

	config, err := buildConfig(crawlCmd, nil)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if config.Target != "https://from-file.example" {
		t.Errorf("Target = %q", config.Target)
	}
	if config.Delay != 100 {
		t.Errorf("Delay = %d, want the file value", config.Delay)
	}
	if config.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want the flag value", config.MaxIterations)
	}
	if config.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v", config.Timeout)
	}
	if config.CustomHeaders["X-Test"] != "1" {
		t.Errorf("CustomHeaders = %v", config.CustomHeaders)
	}

	config, err = buildConfig(crawlCmd, []string{"https://first.example", "https://second.example"})
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if config.Target != "https://first.example" {
		t.Errorf("Target = %q, want the first positional URL", config.Target)
	}
}

func TestBuildConfig_NoURL(t *testing.T) {
	root := newRootCmd()
	crawlCmd, _, err := root.Find([]string{"crawl"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := buildConfig(crawlCmd, nil); err == nil {
		t.Error("buildConfig() without a URL should fail")
	}
}

func TestRun_InvalidSeed(t *testing.T) {
	if code := run([]string{"crawl", "ftp://example.com", "--delay", "0"}); code != exitFatal {
		t.Errorf("run() = %d, want %d", code, exitFatal)
	}
}

func TestRun_StatusMissingArchive(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.db")
	if code := run([]string{"status", "--archive", missing}); code != exitFatal {
		t.Errorf("run() = %d, want %d", code, exitFatal)
	}
}

func TestFormatNames(t *testing.T) {
	if got := formatNames(); got != "text, json, yaml, markdown" {
		t.Errorf("formatNames() = %q", got)
	}
}

func testReport() *output.Report {
	return output.NewReport(output.Run{
		ID: "run-1",
		Snapshot: state.Snapshot{
			Seed:       "https://example.com/",
			Iterations: 1,
			Visited:    []string{"https://example.com/"},
			Legit:      []string{"https://example.com/"},
			Characters: []rune("ab"),
		},
	}, false)
}

func TestWriteReport_File(t *testing.T) {
	config := crawler.DefaultConfig()
	config.Output.Format = "json"
	config.Output.File = filepath.Join(t.TempDir(), "report.json")

	if err := writeReport(config, testReport()); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}

	data, err := os.ReadFile(config.Output.File)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var decoded struct {
		Seed       string `json:"seed"`
		Characters string `json:"characters"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report file is not JSON: %v\n%s", err, data)
	}
	if decoded.Seed != "https://example.com/" || decoded.Characters != "ab" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteReport_UnknownFormatCreatesNoFile(t *testing.T) {
	config := crawler.DefaultConfig()
	config.Output.Format = "xml"
	config.Output.File = filepath.Join(t.TempDir(), "report.xml")

	if err := writeReport(config, testReport()); err == nil {
		t.Fatal("writeReport() with an unknown format should fail")
	}
	if _, err := os.Stat(config.Output.File); !os.IsNotExist(err) {
		t.Errorf("output file should not exist, stat error = %v", err)
	}
}
