package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/mattn/go-isatty"

	"edltool/internal/gpt"
	"edltool/internal/lun"
	"edltool/internal/units"
)

const (
	reset = "\033[0m"
	red   = "\033[31m"
	green = "\033[32m"
	blink = "\033[5m"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + reset
}

const headerTmpl = `LUN: {{.Disk}} ({{.Size}}, {{.SectorSize}} byte sectors)
GPT header at LBA {{.LBA}}: current {{.CurrentLBA}}, alternate {{.AlternateLBA}}
Disk GUID:     {{.DiskGUID}}
Usable LBAs:   {{.FirstUsable}} - {{.LastUsable}}
Entries:       {{.NumEntries}} x {{.EntrySize}} bytes at LBA {{.EntriesLBA}}
Header CRC32:  {{.HeaderCRC}}
Entries CRC32: {{.EntriesCRC}}
{{if .Drift}}Header says it lives at LBA {{.CurrentLBA}}, read from LBA {{.LBA}}
{{end}}`

const partitionTmpl = `{{printf "%3d" .Index}}  {{printf "%-24s" .Name}} {{printf "%10d" .FirstLBA}} {{printf "%10d" .LastLBA}} {{printf "%12s" .Total}}  {{.Flags}}{{if .Slot}}  {{.Slot}}{{end}}
     type {{.TypeGUID}}  unique {{.UniqueGUID}}
`

type headerDisplay struct {
	Disk         string
	Size         string
	SectorSize   int
	LBA          uint64
	CurrentLBA   uint64
	AlternateLBA uint64
	DiskGUID     string
	FirstUsable  uint64
	LastUsable   uint64
	NumEntries   uint32
	EntrySize    uint32
	EntriesLBA   uint64
	HeaderCRC    string
	EntriesCRC   string
	Drift        bool
}

type partitionDisplay struct {
	gpt.Partition
	Index int
	Total string
	Slot  string
}

var (
	headerTemplate    = template.Must(template.New("header").Parse(headerTmpl))
	partitionTemplate = template.Must(template.New("partition").Parse(partitionTmpl))
)

func crcStatus(c gpt.Check) string {
	if c.Mismatch {
		return colorize(red, fmt.Sprintf("0x%08x MISMATCH (computed 0x%08x)", c.Stored, c.Computed))
	}
	return colorize(green, fmt.Sprintf("0x%08x ok", c.Stored))
}

func printTable(w io.Writer, d *lun.Disk, t *lun.Table, slots bool) error {
	h := t.Header()
	hd := headerDisplay{
		Disk:         d.Name(),
		Size:         units.Bytes(d.Size()),
		SectorSize:   d.SectorSize(),
		LBA:          t.LBA,
		CurrentLBA:   h.CurrentLBA(),
		AlternateLBA: h.AlternateLBA(),
		DiskGUID:     h.DiskGUID().String(),
		FirstUsable:  h.FirstUsableLBA(),
		LastUsable:   h.LastUsableLBA(),
		NumEntries:   h.NumPartEntries(),
		EntrySize:    h.PartEntrySize(),
		EntriesLBA:   h.PartEntryStartLBA(),
		HeaderCRC:    crcStatus(t.HeaderCheck.Check),
		EntriesCRC:   crcStatus(t.EntriesCheck),
		Drift:        t.HeaderCheck.LBADrift,
	}
	if err := headerTemplate.Execute(w, hd); err != nil {
		return fmt.Errorf("error executing header template: %w", err)
	}
	fmt.Fprintln(w)

	for i, p := range t.Partitions() {
		pd := partitionDisplay{
			Partition: p,
			Index:     i + 1,
			Total:     units.Bytes(p.Sectors * uint64(d.SectorSize())),
		}
		if slots && isSlotted(p.Name) {
			pd.Slot = gpt.DecodeSlotAttributes(p.Attributes).String()
		}
		if err := partitionTemplate.Execute(w, pd); err != nil {
			return fmt.Errorf("error executing partition template: %w", err)
		}
	}
	return nil
}

func isSlotted(name string) bool {
	return strings.HasSuffix(name, "_a") || strings.HasSuffix(name, "_b")
}

func isPrintable(b byte) bool {
	return b >= 32 && b <= 126
}

// hexDump writes buf in the classic offset / hex / ASCII layout.
func hexDump(w io.Writer, buf []byte, startIndex int64) {
	for i := 0; i < len(buf); i += 16 {
		var hexStr, charStr strings.Builder
		for j := 0; j < 16 && i+j < len(buf); j++ {
			b := buf[i+j]
			fmt.Fprintf(&hexStr, "%02X ", b)
			if j == 7 {
				hexStr.WriteByte(' ')
			}
			if isPrintable(b) {
				charStr.WriteByte(b)
			} else {
				charStr.WriteByte('.')
			}
		}
		fmt.Fprintf(w, "%08X  %-49s  |%s|\n", startIndex+int64(i), hexStr.String(), charStr.String())
	}
}
