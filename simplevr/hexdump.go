package simplevr

import "fmt"

// HexDump renders bytes as space separated upper-case hex pairs ("AA 07 0A").
func HexDump(buf []byte) string {
	return fmt.Sprintf("% X", buf)
}
