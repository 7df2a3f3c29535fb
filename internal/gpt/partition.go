package gpt

import (
	"fmt"
	"sort"
	"strings"
)

// Partition is a read-only projection of a used entry.
type Partition struct {
	TypeGUID   string
	UniqueGUID string
	FirstLBA   uint64
	LastLBA    uint64
	Sectors    uint64
	Attributes uint64
	Flags      string
	Name       string
}

func project(e *Entry) Partition {
	first, last := e.FirstLBA(), e.LastLBA()
	var sectors uint64
	if last >= first {
		sectors = last - first + 1
	}
	return Partition{
		TypeGUID:   e.TypeGUID().String(),
		UniqueGUID: e.UniqueGUID().String(),
		FirstLBA:   first,
		LastLBA:    last,
		Sectors:    sectors,
		Attributes: e.Attributes(),
		Flags:      fmt.Sprintf("0x%016x", e.Attributes()),
		Name:       e.Name(),
	}
}

// Partitions returns every used entry in stored order.
func (g *GPT) Partitions() []Partition {
	var out []Partition
	for _, e := range g.entries {
		if e.IsEmpty() {
			continue
		}
		out = append(out, project(e))
	}
	return out
}

// LocatePartition returns the first used partition whose name equals name.
func (g *GPT) LocatePartition(name string) (Partition, bool) {
	for _, e := range g.entries {
		if !e.IsEmpty() && e.Name() == name {
			return project(e), true
		}
	}
	return Partition{}, false
}

// Info summarises the names and slot letters present in a table.
type Info struct {
	Names map[string]struct{}
	Slots map[string]struct{}
}

// SortedNames returns the partition names in lexical order.
func (i Info) SortedNames() []string { return sortedKeys(i.Names) }

// SortedSlots returns the slot letters in lexical order.
func (i Info) SortedSlots() []string { return sortedKeys(i.Slots) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PartitionsInfo collects the names of used partitions and the slot letters
// found through a literal "_a" or "_b" suffix. Other letters are not
// recognised.
func (g *GPT) PartitionsInfo() Info {
	info := Info{Names: map[string]struct{}{}, Slots: map[string]struct{}{}}
	for _, e := range g.entries {
		if e.IsEmpty() {
			continue
		}
		name := e.Name()
		info.Names[name] = struct{}{}
		if slot, ok := slotSuffix(name); ok {
			info.Slots[slot] = struct{}{}
		}
	}
	return info
}

func slotSuffix(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, "_a"):
		return "a", true
	case strings.HasSuffix(name, "_b"):
		return "b", true
	}
	return "", false
}
