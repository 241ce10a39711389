package commands

import (
	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/exclusion"
)

// TreeBuilder builds selection trees using configured options.
type TreeBuilder struct {
	// HardExclude prunes the fixed heavy directory names (.git, node_modules, ...).
	HardExclude bool
	// Matcher decides the initial state of files on a fresh load.
	Matcher *exclusion.Matcher
	Logger  *zap.Logger
}
