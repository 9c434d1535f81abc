// Package main provides the colorhist CLI: color histograms and k-means color
// clustering of images.
package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TrevorS/colorhist"
	"github.com/TrevorS/colorhist/imagehist"
	"github.com/TrevorS/colorhist/internal/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "colorhist",
		Short: "Color histograms and k-means color clustering",
		Long: `colorhist accumulates the RGB colors of an image into a weighted
histogram and clusters them with weighted k-means.

Results are printed as text; projection images and recolored images are
written when an output directory is configured.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log per-iteration details")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "colorhist v%s (%s)\n", version, commit)
		},
	})

	histCmd := &cobra.Command{
		Use:   "hist IMAGE",
		Short: "Build, sort and summarize the color histogram of an image",
		Args:  cobra.ExactArgs(1),
		RunE:  runHist,
	}
	histCmd.Flags().Int("top", 0, "Number of heaviest colors to print (overrides config)")
	histCmd.Flags().String("output-dir", "", "Directory for histogram.bmp (overrides config)")
	rootCmd.AddCommand(histCmd)

	clusterCmd := &cobra.Command{
		Use:   "cluster IMAGE",
		Short: "Cluster the colors of an image with weighted k-means",
		Args:  cobra.ExactArgs(1),
		RunE:  runCluster,
	}
	clusterCmd.Flags().IntP("clusters", "k", 0, "Number of clusters (overrides config)")
	clusterCmd.Flags().Float64("epsilon", 0, "Convergence threshold (overrides config)")
	clusterCmd.Flags().Int("max-iterations", 0, "Iteration cap, 0 for none (overrides config)")
	clusterCmd.Flags().String("seeding", "", "stride, heaviest, random or farthest (overrides config)")
	clusterCmd.Flags().Int64("seed", 0, "Seed for random seeding (overrides config)")
	clusterCmd.Flags().String("empty-cluster", "", "keep or reseed (overrides config)")
	clusterCmd.Flags().String("output-dir", "", "Directory for result images (overrides config)")
	clusterCmd.Flags().Bool("write-iterations", false, "Write images after every iteration (overrides config)")
	rootCmd.AddCommand(clusterCmd)

	return rootCmd
}

// loadConfig reads --config and applies every flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("top") {
		cfg.Top, _ = flags.GetInt("top")
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("clusters") {
		cfg.Clusters, _ = flags.GetInt("clusters")
	}
	if flags.Changed("epsilon") {
		cfg.Epsilon, _ = flags.GetFloat64("epsilon")
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("seeding") {
		cfg.Seeding, _ = flags.GetString("seeding")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("empty-cluster") {
		cfg.EmptyCluster, _ = flags.GetString("empty-cluster")
	}
	if flags.Changed("write-iterations") {
		cfg.WriteIterations, _ = flags.GetBool("write-iterations")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildHistogram loads the image, accumulates, sorts and rebuilds the tree,
// logging the time of each phase.
func buildHistogram(log *zap.Logger, cfg *config.Config, path string) (*colorhist.Histogram[uint8], image.Image, error) {
	img, err := imagehist.Load(path)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	h, err := imagehist.FromImage(img, cfg.HistogramOptions()...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create histogram")
	}
	log.Info("histogram created",
		zap.String("image", path),
		zap.Int("distinct", h.Len()),
		zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	h.Sort()
	log.Info("histogram sorted", zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	h.RebuildTree()
	log.Info("tree rebuilt",
		zap.Int("depth", h.Depth()),
		zap.Duration("elapsed", time.Since(start)))

	return h, img, nil
}

func runHist(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd)
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer log.Sync() //nolint:errcheck

	h, _, err := buildHistogram(log, cfg, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "all: %g\n", h.Total())
	fmt.Fprintf(out, "hist size = %d\n", h.Len())
	for i, e := range h.TopK(cfg.Top) {
		fmt.Fprintf(out, "%3d %s %g\n", i+1, e.Key, e.Count)
	}

	if cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	path := filepath.Join(cfg.OutputDir, "histogram.bmp")
	if err := imagehist.Save(path, imagehist.Projection(h, nil, nil)); err != nil {
		return err
	}
	log.Info("wrote projection", zap.String("path", path))
	return nil
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd)
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer log.Sync() //nolint:errcheck

	h, src, err := buildHistogram(log, cfg, args[0])
	if err != nil {
		return err
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	kc := cfg.Clustering()
	kc.Logger = log
	palette := imagehist.Palette(kc.K)
	var writeErr error
	last := time.Now()
	kc.OnIteration = func(iteration int, clusters [][]int, shift float64) {
		log.Info("iteration done",
			zap.Int("iteration", iteration),
			zap.Float64("shift", shift),
			zap.Duration("elapsed", time.Since(last)))
		if cfg.WriteIterations && cfg.OutputDir != "" && writeErr == nil {
			writeErr = writeResult(cfg.OutputDir, iteration, h, src, labelsOf(h.Len(), clusters), palette)
		}
		last = time.Now()
	}

	res, err := colorhist.Cluster[uint8](h, kc)
	if err != nil && !errors.Is(err, colorhist.ErrNotConverged) {
		return errors.Wrap(err, "cluster")
	}
	if writeErr != nil {
		return writeErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "iterations: %d converged: %t\n", res.Iterations, res.Converged)
	for c, center := range res.Centers {
		fmt.Fprintf(out, "cluster %d: center %s weight %g keys %d\n",
			c, center, res.Weights[c], len(res.Clusters[c]))
	}

	// Non-convergence is logged by Cluster and is not fatal here.
	if cfg.OutputDir != "" && !cfg.WriteIterations {
		return writeResult(cfg.OutputDir, res.Iterations, h, src, res.Labels, palette)
	}
	return nil
}

// labelsOf turns per-cluster position lists into a position -> cluster table.
func labelsOf(n int, clusters [][]int) []int {
	labels := make([]int, n)
	for c, members := range clusters {
		for _, i := range members {
			labels[i] = c
		}
	}
	return labels
}

// writeResult writes clustiterN.bmp (the recolored image) and histfN.bmp (the
// projection colored by cluster).
func writeResult(dir string, iteration int, h *colorhist.Histogram[uint8], src image.Image, labels []int, palette []color.NRGBA) error {
	keyLabels := make(map[colorhist.Key[uint8]]int, h.Len())
	for i, l := range labels {
		keyLabels[h.At(i).Key] = l
	}
	recolored := filepath.Join(dir, fmt.Sprintf("clustiter%d.bmp", iteration))
	if err := imagehist.Save(recolored, imagehist.Recolor(src, keyLabels, palette)); err != nil {
		return err
	}
	projection := filepath.Join(dir, fmt.Sprintf("histf%d.bmp", iteration))
	return imagehist.Save(projection, imagehist.Projection(h, labels, palette))
}
