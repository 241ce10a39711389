package tokenizer

import (
	"errors"
	"os"
	"unicode/utf8"

	"github.com/temirov/repotxt/internal/utils"
)

// ErrNilCounter is returned when counting is requested without a counter.
var ErrNilCounter = errors.New("nil tokenizer counter")

// CountResult captures the outcome of counting a file or byte slice.
// Counted is false for content that is not text.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for data using counter. Binary data and data
// that is not valid UTF-8 anywhere in its length is skipped; a leading byte
// order mark is not counted.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, ErrNilCounter
	}
	text, isText := countableText(data)
	if !isText {
		return CountResult{}, nil
	}
	tokens, countError := counter.CountString(text)
	if countError != nil {
		return CountResult{}, countError
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

// countableText returns data as text when it can be counted. IsBinary only
// sniffs a prefix, so validity is checked over the whole slice.
func countableText(data []byte) (string, bool) {
	if utils.IsBinary(data) {
		return utils.EmptyString, false
	}
	data = utils.StripByteOrderMark(data)
	if !utf8.Valid(data) {
		return utils.EmptyString, false
	}
	return string(data), true
}

// CountFile reads the file at path and estimates its token count.
func CountFile(counter Counter, path string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, ErrNilCounter
	}
	data, readError := os.ReadFile(path)
	if readError != nil {
		return CountResult{}, readError
	}
	return CountBytes(counter, data)
}
