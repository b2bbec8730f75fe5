package simplevr

import "slices"

// SortBytes sorts buf in ascending order, in place.
func SortBytes(buf []byte) {
	slices.Sort(buf)
}

// DedupBytes returns the distinct values of buf in first-occurrence order.
// buf is not modified.
func DedupBytes(buf []byte) []byte {
	var seen [256]bool
	out := make([]byte, 0, len(buf))
	for _, b := range buf {
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}
