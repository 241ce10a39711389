package utils

import (
	"strconv"
	"strings"
)

const sizeStep = 1024

// sizeUnits are the lower-case unit suffixes used in summary lines.
var sizeUnits = []string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize renders a byte count for the generation summary: whole bytes
// below one kilobyte, one decimal below ten units, whole units above. A
// trailing ".0" is dropped and negative counts render as zero.
func FormatFileSize(bytes int64) string {
	if bytes < sizeStep {
		if bytes < 0 {
			bytes = 0
		}
		return strconv.FormatInt(bytes, 10) + sizeUnits[0]
	}
	scaled := float64(bytes)
	unit := 0
	for scaled >= sizeStep && unit < len(sizeUnits)-1 {
		scaled /= sizeStep
		unit++
	}
	precision := 0
	if scaled < 10 {
		precision = 1
	}
	return strings.TrimSuffix(strconv.FormatFloat(scaled, 'f', precision, 64), ".0") + sizeUnits[unit]
}
