package ir

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

const periodPrefix = "FY:"

// PeriodKey renders the column label of a fiscal year, e.g. "FY:2001".
func PeriodKey(year int) string {
	return periodPrefix + strconv.Itoa(year)
}

// ParsePeriodKey is the inverse of PeriodKey.
func ParsePeriodKey(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, periodPrefix)
	if !ok {
		return 0, fmt.Errorf("period key %q: missing %q prefix", key, periodPrefix)
	}
	year, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("period key %q: %w", key, err)
	}
	return year, nil
}

// CellKey addresses one settled value. The key is order sensitive:
// FNV-1a 64 over "statement|period|account", as 16 hex digits.
func CellKey(statement Statement, periodKey, accountID string) string {
	h := fnv.New64a()
	h.Write([]byte(string(statement) + "|" + periodKey + "|" + accountID))
	return fmt.Sprintf("cell:%016x", h.Sum64())
}
