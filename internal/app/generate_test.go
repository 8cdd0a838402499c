package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"merchant-metrics-pipeline/internal/config"
)

func generateApp(t *testing.T) *App {
	t.Helper()
	return NewApp(&config.Config{
		Generate: config.GenerateConfig{
			OutputDir:  t.TempDir(),
			StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Days:       3,
			PerDay:     5,
			Seed:       42,
			BadRecords: true,
		},
	}, zerolog.Nop())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := generateApp(t)
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	if err := a.Generate(context.Background(), GenerateOptions{OutputDir: dir1}); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if err := a.Generate(context.Background(), GenerateOptions{OutputDir: dir2}); err != nil {
		t.Fatalf("second generate: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(dir1, "transactions.csv"))
	if err != nil {
		t.Fatalf("read first output: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir2, "transactions.csv"))
	if err != nil {
		t.Fatalf("read second output: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("same seed must produce identical transaction files")
	}
}

func TestGenerateRowCountsAndBadRecords(t *testing.T) {
	a := generateApp(t)
	dir := t.TempDir()

	if err := a.Generate(context.Background(), GenerateOptions{OutputDir: dir}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "transactions.csv"))
	// Header + 3 days x 5 rows + 2 bad records.
	if len(lines) != 1+15+2 {
		t.Fatalf("expected 18 lines, got %d", len(lines))
	}
	if lines[0] != "transaction_id,merchant_id,txn_ts_utc,amount,status,payment_method" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[len(lines)-2], "t_bad_1,m_9999,") {
		t.Fatalf("expected unknown-merchant bad record, got %q", lines[len(lines)-2])
	}
	if !strings.Contains(lines[len(lines)-1], ",-5.00,APPROVED,") {
		t.Fatalf("expected negative-amount bad record, got %q", lines[len(lines)-1])
	}

	merchantLines := readLines(t, filepath.Join(dir, "merchants.csv"))
	if len(merchantLines) != 1+len(generatedMerchants) {
		t.Fatalf("expected %d merchant lines, got %d", 1+len(generatedMerchants), len(merchantLines))
	}
}

func TestGenerateWithoutBadRecords(t *testing.T) {
	a := generateApp(t)
	dir := t.TempDir()
	off := false

	if err := a.Generate(context.Background(), GenerateOptions{OutputDir: dir, BadRecords: &off}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "transactions.csv"))
	if len(lines) != 1+15 {
		t.Fatalf("expected 16 lines without bad records, got %d", len(lines))
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "t_bad_") {
			t.Fatalf("unexpected bad record %q", line)
		}
	}
}

func TestResolveGenerateRejectsBadStartDate(t *testing.T) {
	a := generateApp(t)
	if _, err := a.resolveGenerate(GenerateOptions{StartDate: "01/05/2026"}); err == nil {
		t.Fatal("expected error for malformed start date")
	}
}
