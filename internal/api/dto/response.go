package dto

// Envelope is the uniform response body: {success, message, data?, errors?}.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// OK wraps a successful payload.
func OK(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

// Fail wraps a failure message with optional detail lines.
func Fail(message string, errs []string) Envelope {
	return Envelope{Success: false, Message: message, Errors: errs}
}
