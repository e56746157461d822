package v1

// Response is the normalized result shape returned to callers.
// Exactly one of Content or Error is populated, discriminated by IsError.
type Response struct {
	IsError bool           `yaml:"isError" json:"isError"`
	Content *Content       `yaml:"content,omitempty" json:"content,omitempty"`
	Error   *ResponseError `yaml:"error,omitempty" json:"error,omitempty"`
}

// Content carries the human-readable summary plus operation-specific fields
// (sizes, ratios, entries, previews).
type Content struct {
	Text string         `yaml:"text" json:"text"`
	Data map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
}

// ResponseError carries a human-readable message and optional operational
// detail. Details never contains stack traces; those stay in operator logs.
type ResponseError struct {
	Message string `yaml:"message" json:"message"`
	Details string `yaml:"details,omitempty" json:"details,omitempty"`
}

// Success builds a non-error response.
func Success(text string, data map[string]any) Response {
	return Response{Content: &Content{Text: text, Data: data}}
}

// Failure builds an error response.
func Failure(message, details string) Response {
	return Response{IsError: true, Error: &ResponseError{Message: message, Details: details}}
}
