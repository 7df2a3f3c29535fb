package main

import (
	"fmt"
	"strings"

	tcell "github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"edltool/internal/gpt"
	"edltool/internal/lun"
)

var tuiCmd = &cobra.Command{
	Use:   "tui DEVICE",
	Short: "Browse partitions and switch the A/B slot interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openLUN(args[0], true)
		if err != nil {
			return err
		}
		defer d.Close()

		t, err := lun.LoadPrimary(d, gptOptions()...)
		if err != nil {
			return err
		}

		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("failed to initialize screen: %w", err)
		}
		defer screen.Fini()

		s := &tuiState{disk: d, table: t}
		s.run(screen)
		return nil
	},
}

// tuiState holds the TUI state.
type tuiState struct {
	disk     *lun.Disk
	table    *lun.Table
	selected int
	offset   int
	dirty    bool
	quitArm  bool
	message  string
}

func (s *tuiState) run(screen tcell.Screen) {
	screen.SetStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorBlack))
	screen.Clear()

	for {
		s.render(screen)
		screen.Show()

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if s.handleKey(ev) {
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		case nil:
			return
		}
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	width, _ := screen.Size()
	for i, ch := range []rune(text) {
		if x+i >= width {
			break
		}
		screen.SetContent(x+i, y, ch, nil, style)
	}
}

func drawCentered(screen tcell.Screen, y int, style tcell.Style, text string) {
	width, _ := screen.Size()
	x := (width - len(text)) / 2
	if x < 0 {
		x = 0
	}
	drawText(screen, x, y, style, text)
}

func (s *tuiState) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()

	slot, ok := s.table.ActiveSlot()
	if !ok {
		slot = "none"
	}
	title := fmt.Sprintf("=== edltool: %s (active slot: %s) ===", s.disk.Name(), slot)
	if s.dirty {
		title += " [modified]"
	}
	drawCentered(screen, 0, tcell.StyleDefault.Bold(true), title)

	header := fmt.Sprintf(" %-3s %-24s %10s %10s  %-18s %s", "#", "Name", "First LBA", "Last LBA", "Attributes", "Slot")
	drawText(screen, 0, 2, tcell.StyleDefault.Bold(true), header)
	drawText(screen, 0, 3, tcell.StyleDefault, strings.Repeat("-", width))

	parts := s.table.Partitions()
	rows := height - 7
	if rows < 1 {
		rows = 1
	}
	if s.selected < s.offset {
		s.offset = s.selected
	}
	if s.selected >= s.offset+rows {
		s.offset = s.selected - rows + 1
	}

	y := 4
	if len(parts) == 0 {
		drawCentered(screen, y, tcell.StyleDefault.Dim(true), "No partitions found")
	}
	for i := s.offset; i < len(parts) && y < 4+rows; i++ {
		p := parts[i]
		line := fmt.Sprintf(" %-3d %-24s %10d %10d  %-18s", i+1, p.Name, p.FirstLBA, p.LastLBA, p.Flags)
		if isSlotted(p.Name) {
			line += " " + gpt.DecodeSlotAttributes(p.Attributes).String()
		}
		if len(line) < width {
			line += strings.Repeat(" ", width-len(line))
		}

		style := tcell.StyleDefault
		if i == s.selected {
			style = tcell.StyleDefault.
				Foreground(tcell.ColorBlack).
				Background(tcell.ColorWhite)
		}
		drawText(screen, 0, y, style, line)
		y++
	}

	if s.message != "" {
		drawText(screen, 0, height-3, tcell.StyleDefault.Foreground(tcell.ColorYellow), s.message)
	}
	drawCentered(screen, height-1, tcell.StyleDefault.Dim(true),
		"Up/Down: move  a/b: set active slot  w: write  r: reload  q/Esc: quit")
}

// handleKey applies a key press and reports whether the TUI should exit.
func (s *tuiState) handleKey(ev *tcell.EventKey) bool {
	isQuit := ev.Key() == tcell.KeyEscape ||
		(ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'))
	if !isQuit {
		s.quitArm = false
	}

	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEscape:
		return s.quit()
	case tcell.KeyUp:
		if s.selected > 0 {
			s.selected--
		}
		return false
	case tcell.KeyDown:
		if s.selected < len(s.table.Partitions())-1 {
			s.selected++
		}
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	switch ev.Rune() {
	case 'q', 'Q':
		return s.quit()
	case 'a', 'b':
		slot := string(ev.Rune())
		if err := s.table.SetActiveSlot(slot); err != nil {
			s.message = err.Error()
			return false
		}
		s.dirty = true
		s.message = fmt.Sprintf("Slot %s marked active, press w to write both GPTs", slot)
	case 'w', 'W':
		if !s.dirty {
			s.message = "Nothing to write"
			return false
		}
		if _, err := s.table.Commit(s.disk); err != nil {
			s.message = "Write failed: " + err.Error()
			return false
		}
		s.dirty = false
		s.message = "Wrote primary and backup GPT"
	case 'r', 'R':
		t, err := lun.LoadPrimary(s.disk, gptOptions()...)
		if err != nil {
			s.message = "Reload failed: " + err.Error()
			return false
		}
		s.table = t
		s.dirty = false
		s.selected, s.offset = 0, 0
		s.message = "Reloaded from disk"
	}
	return false
}

// quit exits at once unless there are unwritten changes, which need a
// second press.
func (s *tuiState) quit() bool {
	if !s.dirty || s.quitArm {
		return true
	}
	s.quitArm = true
	s.message = "Unwritten changes, press q again to discard them"
	return false
}
