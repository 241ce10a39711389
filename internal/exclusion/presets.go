package exclusion

import (
	"strings"

	"github.com/temirov/repotxt/internal/utils"
)

// webPresetPatterns lists dependency folders, build output, editor metadata,
// media, archives, lock files and minified bundles common to web projects.
var webPresetPatterns = []string{
	"node_modules", ".git", "bin", "obj", "dist", "build", "vendor",
	".next", ".nuxt", ".svelte-kit", "coverage", ".vscode", ".idea",
	".cache", "__pycache__", ".pytest_cache", ".mypy_cache", ".venv", "venv", "env",
	".yarn", ".angular", "bower_components", ".sass-cache", "uploads", "public/uploads",
	"out", ".parcel-cache",
	".DS_Store", "Thumbs.db", "desktop.ini", ".directory",
	".env", ".env.*", "*.config.js",
	"*.log", "*.tmp", "npm-debug.log*", "yarn-debug.log*", "yarn-error.log*",
	"*.ttf", "*.otf", "*.woff", "*.woff2", "*.eot",
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.bmp", "*.ico", "*.webp", "*.avif", "*.svg",
	"*.psd", "*.ai", "*.sketch", "*.fig", "*.xcf",
	"*.mp3", "*.wav", "*.ogg", "*.mp4", "*.webm", "*.avi", "*.mov", "*.mkv", "*.flac", "*.m4a", "*.aac",
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
	"*.zip", "*.rar", "*.7z", "*.tar", "*.gz", "*.tgz", "*.bz2",
	"*.sqlite", "*.db", "*.mdb", "*.accdb",
	"*.dll", "*.exe", "*.so", "*.dylib", "*.class", "*.pyc", "*.pyo",
	"*.crx", "*.xpi", "*.app", "*.apk", "*.ipa",
	"yarn.lock", "package-lock.json", "composer.lock", "poetry.lock", "Pipfile.lock",
	"*.min.js", "*.min.css", "*.map",
	"*.bin", "*.dat", "*.bak", "Dockerfile.bak",
}

// hardExcludedDirectoryNames are never materialized while the preset is active.
var hardExcludedDirectoryNames = map[string]struct{}{
	".git":         {},
	".idea":        {},
	"node_modules": {},
	".vscode":      {},
	".next":        {},
	".nuxt":        {},
	"bin":          {},
	"obj":          {},
	"dist":         {},
	"build":        {},
}

// WebPresetPatterns returns a copy of the web project preset.
func WebPresetPatterns() []string {
	return append([]string(nil), webPresetPatterns...)
}

// IsHardExcludedDirectory reports whether a directory name is pruned outright
// when the preset is enabled.
func IsHardExcludedDirectory(name string) bool {
	_, excluded := hardExcludedDirectoryNames[strings.ToLower(name)]
	return excluded
}

// ActivePatterns assembles the pattern list for a matcher: the preset when
// enabled, followed by the user's own patterns, without duplicates.
func ActivePatterns(presetEnabled bool, userPatterns []string) []string {
	var combined []string
	if presetEnabled {
		combined = append(combined, webPresetPatterns...)
	}
	for _, pattern := range userPatterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed != utils.EmptyString {
			combined = append(combined, trimmed)
		}
	}
	return utils.DeduplicatePatterns(combined)
}
