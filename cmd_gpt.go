package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"edltool/internal/gpt"
	"edltool/internal/lun"
)

var (
	printLBA    uint64
	printBackup bool
	printSlots  bool
)

var printGPTCmd = &cobra.Command{
	Use:     "printgpt DEVICE",
	Aliases: []string{"p", "part"},
	Short:   "Print the GPT header and partition entries",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openLUN(args[0], false)
		if err != nil {
			return err
		}
		defer d.Close()

		var t *lun.Table
		switch {
		case cmd.Flags().Changed("lba"):
			t, err = lun.Load(d, printLBA, gptOptions()...)
		case printBackup:
			t, err = lun.LoadBackup(d, gptOptions()...)
		default:
			t, err = lun.LoadPrimary(d, gptOptions()...)
		}
		if err != nil {
			return err
		}
		return printTable(os.Stdout, d, t, printSlots)
	},
}

var getActiveSlotCmd = &cobra.Command{
	Use:   "getactiveslot DEVICE",
	Short: "Print the active A/B slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openLUN(args[0], false)
		if err != nil {
			return err
		}
		defer d.Close()

		t, err := lun.LoadPrimary(d, gptOptions()...)
		if err != nil {
			return err
		}
		slot, ok := t.ActiveSlot()
		if !ok {
			return fmt.Errorf("no active boot slot on %s", d.Name())
		}
		fmt.Println(slot)
		return nil
	},
}

var setActiveSlotCmd = &cobra.Command{
	Use:       "setactiveslot DEVICE a|b",
	Short:     "Switch the active A/B slot in the primary and backup GPT",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"a", "b"},
	RunE: func(cmd *cobra.Command, args []string) error {
		slot := args[1]
		if slot != "a" && slot != "b" {
			return fmt.Errorf("%w: %q, want a or b", gpt.ErrInvalidSlot, slot)
		}

		d, err := openLUN(args[0], true)
		if err != nil {
			return err
		}
		defer d.Close()

		t, err := lun.SetActiveSlot(d, slot, gptOptions()...)
		if err != nil {
			return err
		}
		for _, p := range t.Partitions() {
			if isSlotted(p.Name) {
				fmt.Printf("%-24s %s\n", p.Name, p.Flags)
			}
		}
		fmt.Printf("Active slot set to %s\n", slot)
		return nil
	},
}

var repairGPTCmd = &cobra.Command{
	Use:   "repairgpt DEVICE",
	Short: "Rewrite the primary GPT checksums and regenerate the backup GPT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openLUN(args[0], true)
		if err != nil {
			return err
		}
		defer d.Close()

		primary, backup, err := lun.Repair(d, gptOptions()...)
		if err != nil {
			return err
		}
		fmt.Printf("Primary header CRC32 as read:  %s\n", crcStatus(primary.HeaderCheck.Check))
		fmt.Printf("Primary entries CRC32 as read: %s\n", crcStatus(primary.EntriesCheck))
		fmt.Printf("Rewrote primary GPT at LBA %d (header CRC32 0x%08x)\n",
			primary.Header().CurrentLBA(), primary.Header().HeaderCRC32())
		fmt.Printf("Wrote backup GPT at LBA %d, entries at LBA %d (header CRC32 0x%08x)\n",
			backup.Header().CurrentLBA(), backup.Header().PartEntryStartLBA(), backup.Header().HeaderCRC32())
		return nil
	},
}

func init() {
	printGPTCmd.Flags().Uint64Var(&printLBA, "lba", 1, "read the GPT header at this LBA")
	printGPTCmd.Flags().BoolVar(&printBackup, "backup", false, "read the backup GPT from the last LBA")
	printGPTCmd.Flags().BoolVar(&printSlots, "slots", false, "show A/B slot attributes")
	printGPTCmd.MarkFlagsMutuallyExclusive("lba", "backup")
}
