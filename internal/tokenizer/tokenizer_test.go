package tokenizer

import (
	"errors"
	"strings"
	"testing"
)

type testCounter struct{}

func (testCounter) Name() string { return "stub" }

func (testCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

// wordEncoder yields one token per whitespace-separated word.
type wordEncoder struct{}

func (wordEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

// panicEncoder fails on every input except the load sample.
type panicEncoder struct{ sampleSucceeds bool }

func (encoder panicEncoder) Encode(text string, _ []string, _ []string) []int {
	if encoder.sampleSucceeds && text == sampleText {
		return []int{1, 2}
	}
	panic("encoding failure")
}

func stubLoader(encoders map[string]Encoder) EncodingLoader {
	return func(name string) (Encoder, error) {
		encoder, exists := encoders[name]
		if !exists {
			return nil, errors.New("encoding not found")
		}
		return encoder, nil
	}
}

func TestCountBytesText(t *testing.T) {
	result, err := CountBytes(testCounter{}, []byte("hello"))
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if !result.Counted {
		t.Fatalf("expected counted result")
	}
	if result.Tokens != len([]rune("hello")) {
		t.Fatalf("expected %d tokens, got %d", len([]rune("hello")), result.Tokens)
	}
}

func TestCountBytesBinary(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}
	result, err := CountBytes(testCounter{}, data)
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if result.Counted {
		t.Fatalf("expected binary data to be skipped")
	}
}

func TestCountBytesSkipsInvalidUTF8PastSniffWindow(t *testing.T) {
	data := append([]byte(strings.Repeat("a", 9000)), 0xff, 0xfe)
	result, err := CountBytes(testCounter{}, data)
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if result.Counted {
		t.Fatalf("expected invalid UTF-8 to be skipped")
	}
}

func TestCountBytesStripsByteOrderMark(t *testing.T) {
	result, err := CountBytes(testCounter{}, append([]byte{0xEF, 0xBB, 0xBF}, "hey"...))
	if err != nil {
		t.Fatalf("CountBytes error: %v", err)
	}
	if !result.Counted || result.Tokens != 3 {
		t.Fatalf("expected 3 counted tokens, got %+v", result)
	}
}

func TestCountBytesRequiresCounter(t *testing.T) {
	if _, err := CountBytes(nil, []byte("x")); !errors.Is(err, ErrNilCounter) {
		t.Fatalf("expected ErrNilCounter, got %v", err)
	}
	if _, err := CountFile(nil, "missing"); !errors.Is(err, ErrNilCounter) {
		t.Fatalf("expected ErrNilCounter, got %v", err)
	}
}

func TestEstimatorModelTable(t *testing.T) {
	estimator := NewEstimator(nil, stubLoader(map[string]Encoder{
		BaselineEncodingName:  wordEncoder{},
		PreferredEncodingName: wordEncoder{},
	}))
	testCases := []struct {
		name                string
		model               string
		expectedEncoding    string
		expectedApproximate bool
	}{
		{name: "default model", model: "", expectedEncoding: PreferredEncodingName},
		{name: "gpt-4o", model: "gpt-4o-mini", expectedEncoding: PreferredEncodingName},
		{name: "gpt-4", model: "GPT-4-turbo", expectedEncoding: BaselineEncodingName},
		{name: "gpt-3.5", model: "gpt-3.5-turbo", expectedEncoding: BaselineEncodingName},
		{name: "claude proxy", model: "claude-3-5-sonnet", expectedEncoding: BaselineEncodingName, expectedApproximate: true},
		{name: "gemini proxy", model: "gemini-pro", expectedEncoding: BaselineEncodingName, expectedApproximate: true},
		{name: "unknown model", model: "mystery-model", expectedEncoding: BaselineEncodingName, expectedApproximate: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			estimate := estimator.Count("one two three", testCase.model)
			if estimate.Count != 3 {
				t.Fatalf("expected 3 tokens, got %d", estimate.Count)
			}
			if estimate.Encoding != testCase.expectedEncoding || estimate.Approximate != testCase.expectedApproximate {
				t.Fatalf("unexpected estimate %+v", estimate)
			}
		})
	}
}

func TestEstimatorEmptyText(t *testing.T) {
	estimator := NewEstimator(nil, stubLoader(map[string]Encoder{
		BaselineEncodingName:  wordEncoder{},
		PreferredEncodingName: wordEncoder{},
	}))
	estimate := estimator.Count("", "gpt-4o")
	if estimate.Count != 0 || estimate.Encoding != PreferredEncodingName || estimate.Approximate {
		t.Fatalf("unexpected estimate %+v", estimate)
	}
}

func TestEstimatorFallsBackWhenPreferredFails(t *testing.T) {
	estimator := NewEstimator(nil, stubLoader(map[string]Encoder{
		BaselineEncodingName:  wordEncoder{},
		PreferredEncodingName: panicEncoder{sampleSucceeds: true},
	}))
	estimate := estimator.Count("alpha beta", "gpt-4o")
	if !estimate.Approximate {
		t.Fatalf("expected fallback to be approximate")
	}
	if estimate.Count != 2 {
		t.Fatalf("expected fallback count 2, got %d", estimate.Count)
	}
	if estimate.Encoding != "cl100k_base (o200k fallback)" {
		t.Fatalf("unexpected encoding %q", estimate.Encoding)
	}
}

func TestEstimatorPreferredUnavailable(t *testing.T) {
	testCases := []struct {
		name     string
		encoders map[string]Encoder
	}{
		{name: "missing", encoders: map[string]Encoder{BaselineEncodingName: wordEncoder{}}},
		{name: "sample encode fails", encoders: map[string]Encoder{BaselineEncodingName: wordEncoder{}, PreferredEncodingName: panicEncoder{}}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			estimator := NewEstimator(nil, stubLoader(testCase.encoders))
			estimate := estimator.Count("alpha beta gamma", "gpt-4o")
			if estimate.Count != 3 || !estimate.Approximate || estimate.Encoding != "cl100k_base (o200k unavailable)" {
				t.Fatalf("unexpected estimate %+v", estimate)
			}
		})
	}
}

func TestEstimatorNeverFails(t *testing.T) {
	estimator := NewEstimator(nil, stubLoader(map[string]Encoder{
		BaselineEncodingName: panicEncoder{},
	}))
	for _, model := range []string{"gpt-4o", "gpt-4", "claude-3"} {
		estimate := estimator.Count("text", model)
		if estimate.Count != 0 || !estimate.Approximate {
			t.Fatalf("expected zero approximate count for %s, got %+v", model, estimate)
		}
	}

	empty := NewEstimator(nil, stubLoader(nil))
	if estimate := empty.Count("text", "gpt-4"); estimate.Count != 0 || !estimate.Approximate {
		t.Fatalf("expected zero approximate count without encodings, got %+v", estimate)
	}
}

func TestEstimatorCounter(t *testing.T) {
	estimator := NewEstimator(nil, stubLoader(map[string]Encoder{
		BaselineEncodingName:  wordEncoder{},
		PreferredEncodingName: wordEncoder{},
	}))
	counter := estimator.Counter("gpt-4")
	if counter.Name() != BaselineEncodingName {
		t.Fatalf("unexpected counter name %q", counter.Name())
	}
	result, err := CountBytes(counter, []byte("a b c d"))
	if err != nil || result.Tokens != 4 {
		t.Fatalf("unexpected result %+v, %v", result, err)
	}
}

func TestTiktokenEstimator(t *testing.T) {
	estimator := NewEstimator(nil, nil)
	estimate := estimator.Count("hello world", "gpt-4o")
	if estimate.Count == 0 && estimate.Approximate {
		t.Skip("tiktoken encodings unavailable")
	}
	if estimate.Count <= 0 {
		t.Fatalf("expected positive token count, got %+v", estimate)
	}
}
