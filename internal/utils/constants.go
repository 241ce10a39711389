package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

// ApplicationName is the binary and configuration prefix.
const ApplicationName = "repotxt"

// ApplicationExecutionFailedMessage prefixes fatal errors reported by main.
const ApplicationExecutionFailedMessage = "repotxt execution failed"

// Configuration and ignore file locations.
const (
	// ConfigFileName is the YAML configuration file looked up locally and globally.
	ConfigFileName = ".repotxt.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding the global configuration.
	GlobalConfigDirectoryName = ".repotxt"
	// IgnoreFileName is the per-project exclusion pattern file.
	IgnoreFileName = ".repotxtignore"
)

// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
