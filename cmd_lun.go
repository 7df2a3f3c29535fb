package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"edltool/internal/archive"
	"edltool/internal/units"
)

var (
	dumpBytes   int
	dumpOffset  int64
	backupAlgo  string
	restoreSure bool
)

var dumpCmd = &cobra.Command{
	Use:     "dump DEVICE",
	Aliases: []string{"l", "list"},
	Short:   "Hex dump raw bytes of a LUN",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dumpBytes <= 0 || dumpOffset < 0 {
			return errors.New("--bytes must be positive and --offset non-negative")
		}
		d, err := openLUN(args[0], false)
		if err != nil {
			return err
		}
		defer d.Close()

		buf := make([]byte, dumpBytes)
		n, err := d.ReadAt(buf, dumpOffset)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error reading %d bytes from offset %d: %w", dumpBytes, dumpOffset, err)
		}
		hexDump(os.Stdout, buf[:n], dumpOffset)
		return nil
	},
}

var disksCmd = &cobra.Command{
	Use:     "disks",
	Aliases: []string{"d"},
	Short:   "List block devices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkWSL() {
			fmt.Println(colorize(red+blink, "Running inside WSL!"))
		}
		disks, err := listDisks()
		if err != nil {
			return err
		}
		for _, disk := range disks {
			fmt.Printf("%-16s %12s  %-10s %s\n", disk.Path, disk.SizeStr, disk.DiskType, disk.MountInfo)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup DEVICE OUTPUT",
	Short: "Save the protective MBR, primary GPT header and entries to a compressed file",
	Long: `Save sectors 0 up to the first usable LBA of DEVICE to OUTPUT plus the
extension of the compression algorithm (zstd gives OUTPUT.zst).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo := cfg.Compression
		if cmd.Flags().Changed("algo") {
			algo = backupAlgo
		}

		d, err := openLUN(args[0], false)
		if err != nil {
			return err
		}
		defer d.Close()

		var progress io.Writer
		if useColor {
			progress = os.Stdout
		}
		res, err := archive.Save(d, args[1], algo, progress, gptOptions()...)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s: %d sectors, %s read, %s written, compression ratio %s\n",
			res.Path, res.Sectors, units.Bytes(res.Read), units.Bytes(res.Written), res.Ratio())
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore DEVICE INPUT",
	Short: "Write a GPT backup made by backup back to the start of a LUN",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !restoreSure {
			return fmt.Errorf("restore overwrites the start of %s, pass --yes to confirm", args[0])
		}
		d, err := openLUN(args[0], true)
		if err != nil {
			return err
		}
		defer d.Close()

		g, err := archive.Restore(d, args[1], gptOptions()...)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d partitions to %s; run repairgpt to refresh the backup GPT\n", len(g.Partitions()), d.Name())
		return nil
	},
}

func init() {
	dumpCmd.Flags().IntVarP(&dumpBytes, "bytes", "n", 512, "number of bytes to dump")
	dumpCmd.Flags().Int64VarP(&dumpOffset, "offset", "o", 0, "byte offset to start at")

	backupCmd.Flags().StringVar(&backupAlgo, "algo", "zstd", fmt.Sprintf("compression algorithm %v", archive.Algorithms()))
	restoreCmd.Flags().BoolVarP(&restoreSure, "yes", "y", false, "confirm overwriting the LUN")
}
