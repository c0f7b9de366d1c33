package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imgfit/imgfit/pkg/compress"
	"github.com/imgfit/imgfit/pkg/imgio"
)

// withFlags pins the command globals for one test and restores them after.
func withFlags(t *testing.T, out string, budget int) {
	t.Helper()
	prevOut, prevMax, prevJSON, prevQuiet, prevCfg := outputPath, maxSizeBytes, jsonOut, quiet, cfgFile
	outputPath, maxSizeBytes, jsonOut, quiet, cfgFile = out, budget, false, true, ""
	t.Cleanup(func() {
		outputPath, maxSizeBytes, jsonOut, quiet, cfgFile = prevOut, prevMax, prevJSON, prevQuiet, prevCfg
	})
}

func writeFixture(t *testing.T, path string, mediaType string, width, height int, noisy bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if noisy {
				n := uint8((x*7919 + y*104729) % 256)
				img.SetNRGBA(x, y, color.NRGBA{R: n, G: n ^ 0x5A, B: n ^ 0xA5, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8(x * 255 / width),
					G: uint8(y * 255 / height),
					A: 255,
				})
			}
		}
	}
	data, err := imgio.New().Encode(img, width, height, mediaType, 1.0)
	if err != nil {
		t.Fatalf("Fixture encode failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Writing fixture failed: %v", err)
	}
}

// TestDefaultOutputPath tests the .fit suffix placement
func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"photo.jpg", "photo.fit.jpg"},
		{"dir/photo.png", "dir/photo.fit.png"},
		{"archive.tar.gz", "archive.tar.fit.gz"},
		{"noext", "noext.fit"},
	}

	for _, tt := range tests {
		if got := defaultOutputPath(tt.input); got != tt.want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestRunCompress tests an end to end CLI run on a real PNG
func TestRunCompress(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gradient.png")
	output := filepath.Join(dir, "out.png")
	writeFixture(t, input, imgio.MediaTypePNG, 300, 300, false)

	withFlags(t, output, 1<<20)

	var buf bytes.Buffer
	if err := runCompress(context.Background(), &buf, input); err != nil {
		t.Fatalf("runCompress failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Reading output failed: %v", err)
	}
	if got := imgio.DetectMediaType(data); got != imgio.MediaTypePNG {
		t.Errorf("Output sniffs as %s, want %s", got, imgio.MediaTypePNG)
	}
	if len(data) >= 1<<20 {
		t.Errorf("Output size %d does not fit the budget", len(data))
	}
	if !strings.Contains(buf.String(), "wrote "+output) {
		t.Errorf("Summary %q does not name the output file", buf.String())
	}

	// The input file stays as it was.
	original, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Reading input failed: %v", err)
	}
	if got := imgio.DetectMediaType(original); got != imgio.MediaTypePNG {
		t.Error("Input file was modified")
	}
}

// TestRunCompress_DefaultOutput tests the derived output path is used
func TestRunCompress_DefaultOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gradient.png")
	writeFixture(t, input, imgio.MediaTypePNG, 200, 200, false)

	withFlags(t, "", 1<<20)

	if err := runCompress(context.Background(), io.Discard, input); err != nil {
		t.Fatalf("runCompress failed: %v", err)
	}

	want := filepath.Join(dir, "gradient.fit.png")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected output at %s: %v", want, err)
	}
}

// TestRunCompress_JSONSummary tests the machine readable report
func TestRunCompress_JSONSummary(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gradient.png")
	output := filepath.Join(dir, "out.png")
	writeFixture(t, input, imgio.MediaTypePNG, 200, 200, false)

	withFlags(t, output, 1<<20)
	jsonOut = true

	var buf bytes.Buffer
	if err := runCompress(context.Background(), &buf, input); err != nil {
		t.Fatalf("runCompress failed: %v", err)
	}

	var report summary
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("Summary is not valid JSON: %v", err)
	}
	if report.Name != "gradient.png" {
		t.Errorf("Summary name %q, want gradient.png", report.Name)
	}
	if report.Type != imgio.MediaTypePNG {
		t.Errorf("Summary type %q, want %s", report.Type, imgio.MediaTypePNG)
	}
	if report.OutputBytes <= 0 || report.OutputBytes >= 1<<20 {
		t.Errorf("Summary output bytes %d outside the budget", report.OutputBytes)
	}
	if report.Output != output {
		t.Errorf("Summary output path %q, want %q", report.Output, output)
	}
}

// TestRunCompress_MissingInput tests a readable error for absent files
func TestRunCompress_MissingInput(t *testing.T) {
	withFlags(t, "", 0)

	err := runCompress(context.Background(), io.Discard, filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("Expected an error for a missing input file")
	}
}

// TestRunCompress_BudgetUnreachable tests exhaustion surfaces as an error
func TestRunCompress_BudgetUnreachable(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "noise.jpg")
	writeFixture(t, input, imgio.MediaTypeJPEG, 400, 400, true)

	withFlags(t, filepath.Join(dir, "out.jpg"), 1200)

	err := runCompress(context.Background(), io.Discard, input)
	if err == nil {
		t.Fatal("Expected an error for an unreachable budget")
	}
	if !errors.Is(err, compress.ErrExhausted) {
		t.Errorf("Expected ErrExhausted on the chain, got %v", err)
	}
}
