package timetable

import (
	"fmt"
	"strconv"
)

// The portal's grid headers label each column with a four-digit coarse
// slot code: the first two digits are the starting period, the last two
// the ending period ("0102" = periods 1-2).

// StandardSlots are the six coarse slots of a standard teaching day.
// The parser does not require the grid to use exactly these codes; any
// four-digit numeric label is treated as a start/end range.
var StandardSlots = []string{"0102", "0304", "0506", "0708", "0910", "1213"}

// PeriodKey is the fine-grained schedule key for a single period.
func PeriodKey(n int) string {
	return fmt.Sprintf("第%d节", n)
}

// SlotRange decodes a coarse slot code into its start and end periods.
// ok is false for labels that are not four-digit numeric codes.
func SlotRange(code string) (start, end int, ok bool) {
	if len(code) != 4 {
		return 0, 0, false
	}
	s, err := strconv.Atoi(code[:2])
	if err != nil {
		return 0, 0, false
	}
	e, err := strconv.Atoi(code[2:])
	if err != nil {
		return 0, 0, false
	}
	if s <= 0 || e < s {
		return 0, 0, false
	}
	return s, e, true
}

// ExpandSlot lists the fine-grained period keys a coarse slot spans.
// Non-code labels expand to nothing.
func ExpandSlot(code string) []string {
	start, end, ok := SlotRange(code)
	if !ok {
		return nil
	}
	keys := make([]string, 0, end-start+1)
	for p := start; p <= end; p++ {
		keys = append(keys, PeriodKey(p))
	}
	return keys
}

// slotOverlaps reports whether a coarse slot intersects [first, last].
// Labels that are not slot codes always pass; the portal occasionally
// uses free-form labels and filtering on them would drop real data.
func slotOverlaps(code string, first, last int) bool {
	start, end, ok := SlotRange(code)
	if !ok {
		return true
	}
	if first > 0 && end < first {
		return false
	}
	if last > 0 && start > last {
		return false
	}
	return true
}
