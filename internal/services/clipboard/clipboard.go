// Package clipboard provides access to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports that no clipboard utility is present on the host.
var ErrUnavailable = errors.New("system clipboard unavailable")

const errorCopyFormat = "copying %d bytes to clipboard: %w"

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a Clipboard service implementation.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf(errorCopyFormat, len(text), err)
	}
	return nil
}

var _ Copier = (*Service)(nil)
