package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tcell "github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edltool/internal/checksum"
	"edltool/internal/config"
	"edltool/internal/gpt"
	"edltool/internal/lun"
	"edltool/internal/lun/luntest"
)

var testParts = []luntest.Part{
	{Name: "xbl_a", Attrs: 0x0004000000000000},
	{Name: "xbl_b"},
	{Name: "boot_a", Attrs: 0x003f000000000000},
	{Name: "boot_b", Attrs: 0x0002000000000000},
	{Name: "userdata"},
}

func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	useColor = false
	cfg = config.DefaultConfig()
	return luntest.Image{Sectors: 128, Parts: testParts}.Write(t)
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func activeSlot(t *testing.T, path string, backup bool) string {
	t.Helper()
	d, err := lun.Open(path, false, 0, nil)
	require.NoError(t, err)
	defer d.Close()

	load := lun.LoadPrimary
	if backup {
		load = lun.LoadBackup
	}
	tbl, err := load(d, gpt.WithPolicy(gpt.Strict))
	require.NoError(t, err)
	slot, ok := tbl.ActiveSlot()
	require.True(t, ok)
	return slot
}

func TestHexDump(t *testing.T) {
	var buf bytes.Buffer
	hexDump(&buf, []byte("EFI PART\x00\x00\x01\x00\x5c\x00\x00\x00ab"), 512)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "00000200  45 46 49 20 50 41 52 54  00 00 01 00 5C 00 00 00   |EFI PART....\\...|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000210  61 62 "))
	assert.True(t, strings.HasSuffix(lines[1], "|ab|"))
}

func TestPrintTable(t *testing.T) {
	path := setup(t)
	d, err := lun.Open(path, false, 0, nil)
	require.NoError(t, err)
	defer d.Close()
	tbl, err := lun.LoadPrimary(d)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, d, tbl, true))
	out := buf.String()

	assert.Contains(t, out, "GPT header at LBA 1: current 1, alternate 127")
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "MISMATCH")
	assert.Contains(t, out, "boot_a")
	assert.Contains(t, out, "userdata")
	assert.Contains(t, out, "0x003f000000000000")
	assert.Equal(t, 4, strings.Count(out, "priority="), "slotted rows only: %s", out)
}

var dupParts = []luntest.Part{
	{Name: "boot_a", Attrs: 0x003f000000000000},
	{Name: "boot_a", Attrs: 0x0002000000000000},
}

func TestPrintTableDuplicateNames(t *testing.T) {
	setup(t)
	path := luntest.Image{Sectors: 128, Parts: dupParts}.Write(t)
	d, err := lun.Open(path, false, 0, nil)
	require.NoError(t, err)
	defer d.Close()
	tbl, err := lun.LoadPrimary(d)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, d, tbl, true))
	out := buf.String()

	assert.Contains(t, out, "priority=3 active=true")
	assert.Contains(t, out, "priority=2 active=false")
}

func TestSetActiveSlotCommand(t *testing.T) {
	path := setup(t)

	require.NoError(t, run(t, "setactiveslot", path, "b"))
	assert.Equal(t, "b", activeSlot(t, path, false))
	assert.Equal(t, "b", activeSlot(t, path, true))

	err := run(t, "setactiveslot", path, "c")
	assert.ErrorIs(t, err, gpt.ErrInvalidSlot)
}

func TestRepairCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	useColor = false
	path := luntest.Image{Sectors: 128, Parts: testParts, NoBackup: true}.Write(t)

	require.NoError(t, run(t, "repairgpt", path))
	assert.Equal(t, "a", activeSlot(t, path, true))
}

func TestBackupRestoreCommands(t *testing.T) {
	path := setup(t)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	out := t.TempDir() + "/gpt"
	require.NoError(t, run(t, "backup", path, out, "--algo", "gzip"))

	require.NoError(t, run(t, "setactiveslot", path, "b"))
	require.Error(t, run(t, "restore", path, out+".gz"))
	require.NoError(t, run(t, "restore", path, out+".gz", "--yes"))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig[:6*512], after[:6*512])
	assert.Equal(t, "a", activeSlot(t, path, false))
}

func newTUI(t *testing.T, path string) *tuiState {
	t.Helper()
	d, err := lun.Open(path, true, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	tbl, err := lun.LoadPrimary(d)
	require.NoError(t, err)
	return &tuiState{disk: d, table: tbl}
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestTUISwitchAndWrite(t *testing.T) {
	path := setup(t)
	s := newTUI(t, path)

	assert.False(t, s.handleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)))
	assert.Equal(t, 1, s.selected)
	assert.False(t, s.handleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)))
	assert.False(t, s.handleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)))
	assert.Equal(t, 0, s.selected)

	assert.False(t, s.handleKey(key('b')))
	assert.True(t, s.dirty)
	assert.Equal(t, "a", activeSlot(t, path, false), "nothing written yet")

	assert.False(t, s.handleKey(key('q')), "first q with unwritten changes only warns")
	assert.False(t, s.handleKey(key('w')))
	assert.False(t, s.dirty)
	assert.Equal(t, "b", activeSlot(t, path, false))
	assert.Equal(t, "b", activeSlot(t, path, true))

	assert.True(t, s.handleKey(key('q')))
}

func TestTUIWriteDriftedHeader(t *testing.T) {
	setup(t)
	img := luntest.Image{Sectors: 128, Parts: testParts}.Bytes(t)
	hdr := img[512 : 512+92]
	binary.LittleEndian.PutUint64(hdr[24:], 3)
	binary.LittleEndian.PutUint32(hdr[16:], checksum.CRC32Zeroed(hdr, 16, 4))
	path := filepath.Join(t.TempDir(), "lun.bin")
	require.NoError(t, os.WriteFile(path, img, 0644))

	s := newTUI(t, path)
	assert.False(t, s.handleKey(key('b')))
	assert.False(t, s.handleKey(key('w')))
	assert.False(t, s.dirty, s.message)

	assert.Equal(t, "b", activeSlot(t, path, false))
	assert.Equal(t, "b", activeSlot(t, path, true))
}

func TestTUIQuitNeedsConfirmation(t *testing.T) {
	s := newTUI(t, setup(t))

	assert.False(t, s.handleKey(key('a')))
	assert.False(t, s.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.False(t, s.handleKey(key('r')))
	assert.False(t, s.dirty)
	assert.True(t, s.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestTUIRender(t *testing.T) {
	s := newTUI(t, setup(t))

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(120, 30)

	s.render(screen)
	screen.Show()

	cells, width, _ := screen.GetContents()
	row := func(y int) string {
		var sb strings.Builder
		for _, c := range cells[y*width : (y+1)*width] {
			sb.Write(c.Bytes)
		}
		return sb.String()
	}
	assert.Contains(t, row(0), "active slot: a")
	assert.Contains(t, row(4), "xbl_a")
	assert.Contains(t, row(8), "userdata")
}

func TestTUIRenderDuplicateNames(t *testing.T) {
	setup(t)
	s := newTUI(t, luntest.Image{Sectors: 128, Parts: dupParts}.Write(t))

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(160, 30)

	s.render(screen)
	screen.Show()

	cells, width, _ := screen.GetContents()
	row := func(y int) string {
		var sb strings.Builder
		for _, c := range cells[y*width : (y+1)*width] {
			sb.Write(c.Bytes)
		}
		return sb.String()
	}
	assert.Contains(t, row(4), "priority=3 active=true")
	assert.Contains(t, row(5), "priority=2 active=false")
}
