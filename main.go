package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"edltool/internal/config"
	"edltool/internal/gpt"
	"edltool/internal/lun"
)

var appversion = "0.3.2"

var (
	verbose    bool
	configPath string
	sectorSize int
	strict     bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "edltool",
	Short:         "GPT and A/B slot tools for Qualcomm storage LUNs",
	Version:       appversion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("sector-size") {
			c.SectorSize = sectorSize
		}
		if cmd.Flags().Changed("strict") {
			c.Strict = strict
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c

		level, err := zapcore.ParseLevel(c.Logging.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/edltool/config.yaml)")
	rootCmd.PersistentFlags().IntVar(&sectorSize, "sector-size", 0, "sector size in bytes (0 detects it)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "treat checksum mismatches and LBA drift as errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(printGPTCmd, getActiveSlotCmd, setActiveSlotCmd, repairGPTCmd)
	rootCmd.AddCommand(dumpCmd, disksCmd, backupCmd, restoreCmd, tuiCmd)
}

func gptOptions() []gpt.Option {
	policy := gpt.Lenient
	if cfg.Strict {
		policy = gpt.Strict
	}
	return []gpt.Option{gpt.WithLogger(logger), gpt.WithPolicy(policy)}
}

// openLUN opens a device or image, turning a permission failure into a hint.
func openLUN(path string, writable bool) (*lun.Disk, error) {
	d, err := lun.Open(path, writable, cfg.SectorSize, logger)
	if errors.Is(err, os.ErrPermission) {
		return nil, fmt.Errorf("no permission to open %s, try with elevated privileges: %w", path, err)
	}
	return d, err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize(red, "Error:"), err)
		if errors.Is(err, os.ErrPermission) {
			os.Exit(13)
		}
		os.Exit(1)
	}
}
