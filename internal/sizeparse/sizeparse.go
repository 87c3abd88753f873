// Package sizeparse parses the -limit flag's human-readable byte
// sizes (KB/MB/GB/TB, base 1024) for cmd/mkudfiso.
package sizeparse

import (
	"fmt"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// Parse converts a size string like "700MB" or "4.7GB" into a byte
// count. A bare number with no suffix is interpreted as bytes. Returns
// 0, nil for an empty string (meaning "no limit").
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := bytefmt.ToBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing size %q: %w", s, err)
	}
	return n, nil
}
