package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vkngwrapper/blockpool/internal/config"
	"golang.org/x/exp/slog"
)

var (
	// Global flags
	configPath  string
	capacity    int
	element     string
	backingFile string
	jsonOut     bool
	verbose     bool
	validate    bool

	settings *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poolrun",
	Short: "Drive a fixed-capacity block pool from allocation scripts",
	Long: `poolrun builds fixed-capacity block pools and drives them with allocation
scripts, printing the resulting block layout. Each block is reported by its
header: the payload size in bytes, negative while the block is allocated.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().IntVar(&capacity, "capacity", 1000, "Pool capacity in bytes")
	rootCmd.PersistentFlags().StringVar(&element, "element", "float64", fmt.Sprintf("Element type, one of %v", config.ElementTypes))
	rootCmd.PersistentFlags().StringVar(&backingFile, "backing-file", "", "Map the pool onto this file")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output the detailed block map as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every allocation and deallocation")
	rootCmd.PersistentFlags().BoolVar(&validate, "validate", false, "Validate the block layout after every mutation")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings merges the config file with any flags given explicitly on the command line
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("capacity") {
		cfg.Pool.Capacity = capacity
	}
	if flags.Changed("element") {
		cfg.Pool.Element = element
	}
	if flags.Changed("backing-file") {
		cfg.Pool.BackingFile = backingFile
	}
	if flags.Changed("validate") {
		cfg.Pool.ValidateMutations = validate
	}
	if flags.Changed("json") {
		cfg.Output.JSON = jsonOut
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = verbose
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	settings = cfg
	logger = newLogger(cfg.Output.Verbose)
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))
}

// printInfo prints a message to stderr so that it never mixes with layout output
func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
