package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Transport Errors (E001-E009)
	// ============================================

	"E001": {
		Category: CategoryTransport,
		Message:  "Mutation request failed",
		Detail:   "The server answered the mutation request with a non-success status. The call is abandoned; nothing is retried.",
	},
	"E002": {
		Category: CategoryTransport,
		Message:  "WebSocket unavailable",
		Detail:   "The persistent channel is not open and the reconnect attempt failed.",
	},
	"E003": {
		Category: CategoryTransport,
		Message:  "WebSocket closed with request pending",
		Detail:   "The persistent channel closed before the server answered this request.",
	},

	// ============================================
	// Protocol Errors (E010-E019)
	// ============================================

	"E010": {
		Category: CategoryProtocol,
		Message:  "Unknown request id",
		Detail:   "A response frame referenced a request id that has no pending entry. The frame was discarded.",
	},
	"E011": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "A frame or envelope could not be decoded.",
	},

	// ============================================
	// Hook Errors (E020-E029)
	// ============================================

	"E020": {
		Category: CategoryHook,
		Message:  "Inline hook handler failed",
		Detail:   "An inline hook handler returned an error or panicked. The mutation pipeline continued.",
	},

	// ============================================
	// Call Errors (E030-E039)
	// ============================================

	"E030": {
		Category: CategoryCall,
		Message:  "Malformed duration",
		Detail:   `Delays are a number of seconds or a string like "250ms", "2s", "1.5m" or "1h".`,
	},
	"E031": {
		Category: CategoryCall,
		Message:  "Target node not found",
		Detail:   "No node in the document matches the given selector or component id.",
	},
	"E032": {
		Category: CategoryCall,
		Message:  "No target given",
		Detail:   "A callback needs a node, a component id or a selector.",
	},

	// ============================================
	// Config Errors (E040-E049)
	// ============================================

	"E040": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	"E041": {
		Category: CategoryConfig,
		Message:  "Failed to read configuration",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
