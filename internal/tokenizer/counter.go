package tokenizer

import (
	"errors"
)

// estimatorCounter counts through an Estimator for a fixed model.
type estimatorCounter struct {
	estimator *Estimator
	model     string
}

func (counter estimatorCounter) Name() string {
	return counter.estimator.Count("", counter.model).Encoding
}

func (counter estimatorCounter) CountString(input string) (int, error) {
	if counter.estimator == nil {
		return 0, errors.New("nil token estimator")
	}
	return counter.estimator.Count(input, counter.model).Count, nil
}
