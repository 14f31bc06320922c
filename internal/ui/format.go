package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count with 1024-based units and two decimal
// places, e.g. "1.50 KB". Sub-kilobyte values print without decimals.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(bytes)
	idx := -1
	for value >= unit && idx < len(units)-1 {
		value /= unit
		idx++
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}

// ParseSize parses a human size string ("500MB", "1.5 GiB", "1048576")
// into bytes. Both SI and binary suffixes are accepted.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}
