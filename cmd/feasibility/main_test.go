package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/feasibility-forecast/internal/config"
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func loadExample(t *testing.T) *config.Configuration {
	t.Helper()
	conf, err := config.LoadConfiguration(filepath.Join("..", "..", "config.yaml.example"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return conf
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()
	fn()
	_ = w.Close()
	return <-done
}

func TestResolve(t *testing.T) {
	conf := &config.Configuration{Output: config.OutputConfig{Format: "csv", File: "out.xlsx"}}

	tests := []struct {
		name           string
		conf           *config.Configuration
		formatOverride string
		fileOverride   string
		expected       options
	}{
		{name: "Configured", conf: conf, expected: options{format: "csv", outputFile: "out.xlsx"}},
		{name: "Overrides", conf: conf, formatOverride: "xlsx", fileOverride: "other.xlsx", expected: options{format: "xlsx", outputFile: "other.xlsx"}},
		{name: "Default format", conf: &config.Configuration{}, expected: options{format: constants.OutputFormatPretty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve(tt.conf, tt.formatOverride, tt.fileOverride); got != tt.expected {
				t.Errorf("resolve() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestRunExamplePretty(t *testing.T) {
	conf := loadExample(t)

	var err error
	out := captureStdout(t, func() {
		err = run(context.Background(), zap.NewNop(), conf, options{format: constants.OutputFormatPretty})
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	for _, expected := range []string{
		"--- Results for scenario base ---",
		"--- Summary for scenario optimistic ---",
		"--- Comparison optimistic vs base ---",
		"--- Break-even ---",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("expected %q in output", expected)
		}
	}
	if strings.Contains(out, "archived") {
		t.Errorf("inactive scenario should not be printed")
	}
}

func TestRunExampleCsv(t *testing.T) {
	conf := loadExample(t)

	var err error
	out := captureStdout(t, func() {
		err = run(context.Background(), zap.NewNop(), conf, options{format: constants.OutputFormatCSV})
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+3*48 {
		t.Errorf("expected header and 144 rows, got %d lines", len(lines))
	}
}

func TestRunExampleXlsx(t *testing.T) {
	conf := loadExample(t)
	path := filepath.Join(t.TempDir(), "forecast.xlsx")

	if err := run(context.Background(), zap.NewNop(), conf, options{format: constants.OutputFormatXLSX, outputFile: path}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer func() { _ = f.Close() }()
	if sheets := f.GetSheetList(); len(sheets) != 5 {
		t.Errorf("expected 5 sheets, got %v", sheets)
	}
}

func TestRunRejectsBadOutput(t *testing.T) {
	conf := loadExample(t)

	tests := []struct {
		name string
		opts options
	}{
		{name: "Unknown format", opts: options{format: "html"}},
		{name: "Workbook without file", opts: options{format: constants.OutputFormatXLSX}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), zap.NewNop(), conf, tt.opts); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
