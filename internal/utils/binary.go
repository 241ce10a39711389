package utils

import (
	"bytes"
	"unicode/utf8"
)

// sniffLength defines the maximum number of bytes inspected when detecting binary content.
const sniffLength = 8000

var utf8ByteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// IsBinary reports whether the leading bytes of data appear to be binary.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > sniffLength {
		sample = sample[:sniffLength]
		// a multi-byte rune may straddle the cut
		for cut := 0; cut < utf8.UTFMax && !utf8.Valid(sample); cut++ {
			sample = sample[:len(sample)-1]
		}
	}
	if !utf8.Valid(sample) {
		return true
	}
	return bytes.IndexByte(sample, 0) >= 0
}

// StripByteOrderMark removes a leading UTF-8 byte order mark.
func StripByteOrderMark(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8ByteOrderMark)
}
