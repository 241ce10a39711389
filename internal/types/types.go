// Package types defines every cross-package data structure used by the repotxt CLI.
package types

import "strings"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	CommandGenerate   = "generate"
	CommandTree       = "tree"
	CommandExtensions = "extensions"
	CommandTokens     = "tokens"
	CommandDiff       = "diff"
	CommandWatch      = "watch"
	CommandServe      = "serve"
	CommandInit       = "init"

	FormatRaw  = "raw"
	FormatJSON = "json"
)

// DiffMode selects which changes the git diff collaborator reports.
type DiffMode string

const (
	// DiffModeNone disables the diff section.
	DiffModeNone DiffMode = ""
	// DiffModePending compares the working tree with HEAD.
	DiffModePending DiffMode = "pending"
	// DiffModeBranches compares the tips of two branches.
	DiffModeBranches DiffMode = "branches"
	// DiffModeCommits compares two commits.
	DiffModeCommits DiffMode = "commits"

	diffModeNoneLiteral DiffMode = "none"
)

// ParseDiffMode maps a mode name to a DiffMode. The empty string and "none"
// disable the diff; unknown names report false.
func ParseDiffMode(value string) (DiffMode, bool) {
	switch DiffMode(strings.ToLower(strings.TrimSpace(value))) {
	case DiffModeNone, diffModeNoneLiteral:
		return DiffModeNone, true
	case DiffModePending:
		return DiffModePending, true
	case DiffModeBranches:
		return DiffModeBranches, true
	case DiffModeCommits:
		return DiffModeCommits, true
	}
	return DiffModeNone, false
}

// TreeOutputNode represents a node of the selection tree rendered by the tree command.
type TreeOutputNode struct {
	Path     string            `json:"path"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	State    string            `json:"state"`
	Children []*TreeOutputNode `json:"children,omitempty"`
}

// GenerationResult is the outcome of one output generation.
type GenerationResult struct {
	// Text is the complete generated document.
	Text string
	// Files counts the selected files included in Text.
	Files int
	// Bytes sums the content bytes read from the selected files.
	Bytes int64
	// Failures counts files rendered with an inline error instead of content.
	Failures int
}

// TokenEstimate is a token count with the encoding that produced it.
type TokenEstimate struct {
	Count       int    `json:"count"`
	Encoding    string `json:"encoding"`
	Approximate bool   `json:"approximate"`
}

// OutputSummary captures aggregate information about a generated document.
type OutputSummary struct {
	TotalFiles int
	TotalSize  string
	Failures   int
}
