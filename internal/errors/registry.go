package errors

import (
	"maps"
	"slices"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (E100-E109)
	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No imclient.json was found in the given directory.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "imclient.json could not be parsed or contains invalid values.",
	},

	// Session (E110-E119)
	"E110": {
		Category: CategorySession,
		Message:  "Connection failed",
		Detail:   "The session could not be established.",
	},
	"E111": {
		Category: CategorySession,
		Message:  "Login rejected",
		Detail:   "The server refused the account or token.",
	},
	"E112": {
		Category: CategorySession,
		Message:  "Session closed",
		Detail:   "The session closed while the command was running.",
	},

	// Protocol (E120-E129)
	"E120": {
		Category: CategoryProtocol,
		Message:  "History retrieval failed",
		Detail:   "The server did not return the requested history.",
	},
	"E121": {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
		Detail:   "The input is not a valid encoded structure.",
	},

	// Storage (E130-E139)
	"E130": {
		Category: CategoryStorage,
		Message:  "Watermark store unavailable",
		Detail:   "The watermark database could not be opened.",
	},
	"E131": {
		Category: CategoryStorage,
		Message:  "Archive export failed",
		Detail:   "Retrieved history could not be written to the archive.",
	},

	// CLI (E140-E149)
	"E140": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	return slices.Sorted(maps.Keys(registry))
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
