// Command imgfit compresses a single image file to fit under a byte
// budget, using the same pipeline the API serves.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/imgfit/imgfit/internal/config"
	"github.com/imgfit/imgfit/internal/logger"
	"github.com/imgfit/imgfit/pkg/compress"
	"github.com/imgfit/imgfit/pkg/imgio"
)

var (
	cfgFile      string
	outputPath   string
	maxSizeBytes int
	jsonOut      bool
	verbose      bool
	quiet        bool
)

var rootCmd = &cobra.Command{
	Use:   "imgfit <image>",
	Short: "Compress an image to fit under a byte budget",
	Long: `imgfit re-encodes an image so the output fits strictly under a byte
budget. It first shrinks the dimensions slightly at full quality; if the
result is still too large it walks the encoder quality downward until the
output fits or the quality floor is reached.

Supported inputs: JPEG, PNG, GIF, WebP, BMP, TIFF and HEIC. The output
keeps the input format.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default: <name>.fit.<ext>)")
	rootCmd.Flags().IntVarP(&maxSizeBytes, "max-size", "m", 0, "byte budget (default from config)")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

// summary is the machine-readable report printed with --json.
type summary struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	InputBytes  int     `json:"input_bytes"`
	OutputBytes int     `json:"output_bytes"`
	SavedPct    float64 `json:"saved_pct"`
	Output      string  `json:"output"`
}

func runCompress(ctx context.Context, w io.Writer, inputPath string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	budget := maxSizeBytes
	if budget <= 0 {
		budget = cfg.Compress.DefaultMaxSizeBytes
	}

	mediaType := imgio.DetectMediaType(data)
	src := compress.NewSourceImage(data, mediaType, filepath.Base(inputPath))

	log.WithFields(logrus.Fields{
		"file":   inputPath,
		"type":   mediaType,
		"size":   src.Size(),
		"budget": budget,
	}).Debug("compressing")

	compressor := compress.New(imgio.New(), compress.Options{
		NonCompressible: cfg.Compress.NonCompressible,
	})
	result, err := compressor.Compress(ctx, src, budget)
	if err != nil {
		return err
	}

	out := outputPath
	if out == "" {
		out = defaultOutputPath(inputPath)
	}
	if err := os.WriteFile(out, result.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	saved := 0.0
	if src.Size() > 0 {
		saved = 100 * (1 - float64(result.Size())/float64(src.Size()))
	}
	if jsonOut {
		return json.NewEncoder(w).Encode(summary{
			Name:        src.Name,
			Type:        result.Type,
			InputBytes:  src.Size(),
			OutputBytes: result.Size(),
			SavedPct:    saved,
			Output:      out,
		})
	}
	fmt.Fprintf(w, "%s: %d bytes to %d bytes (%.1f%% saved), wrote %s\n",
		src.Name, src.Size(), result.Size(), saved, out)
	return nil
}

// setupLogger derives CLI logging from config and the verbosity flags.
// The CLI always logs to console as text; file rotation stays available
// through the config file.
func setupLogger(cfg *config.Config) (*logrus.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if quiet {
		level = "error"
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     "text",
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    true,
	})
}

// defaultOutputPath inserts ".fit" before the extension so input files
// are never overwritten.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".fit" + ext
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
