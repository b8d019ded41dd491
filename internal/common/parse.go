package common

import (
	"strconv"
	"strings"
)

// ParseMutez converts a decimal mutez string as reported by the node into an int64.
// An empty string is zero.
func ParseMutez(val string) (int64, error) {
	if val == "" {
		return 0, nil
	}

	return strconv.ParseInt(val, 10, 64)
}

const bytesInMB = 1024 * 1024

func MBToBytes(mb uint64) uint64 {
	return mb * bytesInMB
}

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
