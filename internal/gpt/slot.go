package gpt

import (
	"fmt"
	"strings"
)

// A/B attribute bits as used by ABL. Bits 0-47 and 56-63 are not ours and are
// carried through every update unchanged.
const (
	priorityShift   = 48
	activeShift     = 50
	retryShift      = 51
	successfulShift = 54
	unbootableShift = 55

	priorityMask   uint64 = 0x3 << priorityShift
	activeMask     uint64 = 0x1 << activeShift
	retryMask      uint64 = 0x7 << retryShift
	successfulMask uint64 = 0x1 << successfulShift
	unbootableMask uint64 = 0x1 << unbootableShift

	slotMask = priorityMask | activeMask | retryMask | successfulMask | unbootableMask

	maxPriority   = 3
	maxRetryCount = 7
)

// SlotAttributes are the A/B fields packed into bits 48-55 of an attribute word.
type SlotAttributes struct {
	Priority   uint8
	Active     bool
	RetryCount uint8
	Successful bool
	Unbootable bool
}

// DecodeSlotAttributes extracts the A/B fields from attr.
func DecodeSlotAttributes(attr uint64) SlotAttributes {
	return SlotAttributes{
		Priority:   uint8((attr & priorityMask) >> priorityShift),
		Active:     attr&activeMask != 0,
		RetryCount: uint8((attr & retryMask) >> retryShift),
		Successful: attr&successfulMask != 0,
		Unbootable: attr&unbootableMask != 0,
	}
}

func (s SlotAttributes) String() string {
	return fmt.Sprintf("priority=%d active=%t retry=%d successful=%t unbootable=%t",
		s.Priority, s.Active, s.RetryCount, s.Successful, s.Unbootable)
}

func isBootSlotEntry(name string) bool {
	if !strings.HasPrefix(name, "boot_") {
		return false
	}
	_, ok := slotSuffix(name)
	return ok
}

// ActiveSlot returns the slot of the active boot_a/boot_b entry with the
// highest priority. Equal priorities keep the first entry seen. The
// unbootable bit is not consulted, which matches ABL's selection order.
func (g *GPT) ActiveSlot() (string, bool) {
	var (
		slot string
		best = -1
	)
	for _, e := range g.entries {
		if e.IsEmpty() {
			continue
		}
		name := e.Name()
		if !isBootSlotEntry(name) {
			continue
		}
		attrs := DecodeSlotAttributes(e.Attributes())
		if !attrs.Active {
			continue
		}
		if int(attrs.Priority) > best {
			best = int(attrs.Priority)
			slot, _ = slotSuffix(name)
		}
	}
	return slot, best >= 0
}

// SetActiveSlot marks slot ("a" or "b") active the way ABL does.
//
// Entries named boot* get a full update: the active side is set to
// priority 3, active, 7 retries, not successful, bootable; the other side
// only gets priority 2 and its active bit cleared. Every other slotted
// entry only has its active bit set or cleared.
func (g *GPT) SetActiveSlot(slot string) error {
	if slot != "a" && slot != "b" {
		return fmt.Errorf("%w: %q, want \"a\" or \"b\"", ErrInvalidSlot, slot)
	}

	for _, e := range g.entries {
		if e.IsEmpty() {
			continue
		}
		name := e.Name()
		suffix, ok := slotSuffix(name)
		if !ok {
			continue
		}
		active := suffix == slot
		attr := e.Attributes()

		switch {
		case strings.HasPrefix(name, "boot") && active:
			attr &^= slotMask
			attr |= maxPriority<<priorityShift | activeMask | maxRetryCount<<retryShift
		case strings.HasPrefix(name, "boot"):
			attr &^= priorityMask | activeMask
			attr |= 2 << priorityShift
		case active:
			attr |= activeMask
		default:
			attr &^= activeMask
		}
		e.SetAttributes(attr)
	}
	return nil
}
