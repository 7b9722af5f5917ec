package sysinfo

import (
	"fmt"
	"math"
)

var byteSuffixes = [...]string{"b", "kb", "mb", "gb", "tb", "pb", "eb"}

// PrettyBytes renders a byte count on a human-readable 1024 scale with one
// decimal place, dropping the decimal when the scaled value is an exact
// integer: 0 -> "0b", 1024 -> "1kb", 1536 -> "1.5kb".
func PrettyBytes(bytes uint64) string {
	count := float64(bytes)
	suffix := 0
	for count >= 1024 && suffix < len(byteSuffixes)-1 {
		count /= 1024
		suffix++
	}
	if count == math.Floor(count) {
		return fmt.Sprintf("%d%s", int64(count), byteSuffixes[suffix])
	}
	return fmt.Sprintf("%.1f%s", count, byteSuffixes[suffix])
}
