// Package tokenizer estimates token counts locally with tiktoken encodings.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Encoder is the subset of a tiktoken encoding used for counting.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// EncodingLoader resolves an encoding by name.
type EncodingLoader func(name string) (Encoder, error)

const (
	// DefaultModel is used when no model is requested.
	DefaultModel = "gpt-4o"

	// BaselineEncodingName is the encoding every model can fall back to.
	BaselineEncodingName = "cl100k_base"
	// PreferredEncodingName is the encoding of the GPT-4o family.
	PreferredEncodingName = "o200k_base"

	preferredUnavailableName = BaselineEncodingName + " (o200k unavailable)"
	preferredFallbackName    = BaselineEncodingName + " (o200k fallback)"

	sampleText = "hello world"

	warningEncodingUnavailableFormat = "Warning: tokenizer encoding %s unavailable"
	warningEncodingFailedFormat      = "Warning: tokenizer encoding %s failed, falling back"
	debugEncodingLoadedFormat        = "loaded tokenizer encoding %s"
)

// modelProfile maps a model family to the encoding used to count for it.
type modelProfile struct {
	prefixes    []string
	encoding    string
	approximate bool
}

// modelProfiles is ordered; the first matching prefix wins.
var modelProfiles = []modelProfile{
	{prefixes: []string{"gpt-4o", "chatgpt-4o", "o1", "o3", "o4"}, encoding: PreferredEncodingName},
	{prefixes: []string{"gpt-4", "gpt-3.5", "text-embedding"}, encoding: BaselineEncodingName},
	{prefixes: []string{"claude", "gemini"}, encoding: BaselineEncodingName, approximate: true},
}

// Estimator counts tokens per model family. Encodings are loaded once and the
// estimator never returns an error: failures degrade to the baseline encoding
// or to a zero count, both flagged as approximate.
type Estimator struct {
	baseline  Encoder
	preferred Encoder
	logger    *zap.Logger
}

// TiktokenLoader loads encodings through tiktoken-go.
func TiktokenLoader(name string) (Encoder, error) {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	return encoding, nil
}

// NewEstimator loads the baseline and preferred encodings with loader, which
// defaults to TiktokenLoader. The preferred encoding must also survive a sample
// encode to be used.
func NewEstimator(logger *zap.Logger, loader EncodingLoader) *Estimator {
	if loader == nil {
		loader = TiktokenLoader
	}
	estimator := &Estimator{logger: utils.LoggerOrNop(logger)}
	estimator.baseline = estimator.load(loader, BaselineEncodingName)
	estimator.preferred = estimator.load(loader, PreferredEncodingName)
	if estimator.preferred != nil {
		if _, sampleError := encodeSafely(estimator.preferred, sampleText); sampleError != nil {
			estimator.logger.Warn(fmt.Sprintf(warningEncodingUnavailableFormat, PreferredEncodingName), zap.Error(sampleError))
			estimator.preferred = nil
		}
	}
	return estimator
}

func (estimator *Estimator) load(loader EncodingLoader, name string) Encoder {
	encoder, loadError := loader(name)
	if loadError != nil || encoder == nil {
		estimator.logger.Warn(fmt.Sprintf(warningEncodingUnavailableFormat, name), zap.Error(loadError))
		return nil
	}
	estimator.logger.Debug(fmt.Sprintf(debugEncodingLoadedFormat, name))
	return encoder
}

// Count estimates the tokens of text for model.
func (estimator *Estimator) Count(text string, model string) types.TokenEstimate {
	profile := lookupModel(model)

	if profile.encoding == PreferredEncodingName {
		if estimator.preferred == nil {
			return estimator.countBaseline(text, preferredUnavailableName, true)
		}
		if text == utils.EmptyString {
			return types.TokenEstimate{Encoding: PreferredEncodingName, Approximate: profile.approximate}
		}
		count, encodeError := encodeSafely(estimator.preferred, text)
		if encodeError == nil {
			return types.TokenEstimate{Count: count, Encoding: PreferredEncodingName, Approximate: profile.approximate}
		}
		estimator.logger.Warn(fmt.Sprintf(warningEncodingFailedFormat, PreferredEncodingName), zap.Error(encodeError))
		return estimator.countBaseline(text, preferredFallbackName, true)
	}

	return estimator.countBaseline(text, BaselineEncodingName, profile.approximate)
}

func (estimator *Estimator) countBaseline(text string, encodingName string, approximate bool) types.TokenEstimate {
	if estimator.baseline == nil {
		return types.TokenEstimate{Encoding: encodingName, Approximate: true}
	}
	if text == utils.EmptyString {
		return types.TokenEstimate{Encoding: encodingName, Approximate: approximate}
	}
	count, encodeError := encodeSafely(estimator.baseline, text)
	if encodeError != nil {
		estimator.logger.Warn(fmt.Sprintf(warningEncodingFailedFormat, BaselineEncodingName), zap.Error(encodeError))
		return types.TokenEstimate{Encoding: encodingName, Approximate: true}
	}
	return types.TokenEstimate{Count: count, Encoding: encodingName, Approximate: approximate}
}

// Counter adapts the estimator to the Counter interface for one model.
func (estimator *Estimator) Counter(model string) Counter {
	return estimatorCounter{estimator: estimator, model: model}
}

func lookupModel(model string) modelProfile {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == utils.EmptyString {
		normalized = DefaultModel
	}
	for _, profile := range modelProfiles {
		for _, prefix := range profile.prefixes {
			if strings.HasPrefix(normalized, prefix) {
				return profile
			}
		}
	}
	return modelProfile{encoding: BaselineEncodingName, approximate: true}
}

// encodeSafely converts an encoder panic into an error.
func encodeSafely(encoder Encoder, text string) (count int, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("encoder panic: %v", recovered)
		}
	}()
	return len(encoder.Encode(text, nil, nil)), nil
}
