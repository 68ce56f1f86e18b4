package server

// RunAcceptedResponse is returned when a run has been queued.
type RunAcceptedResponse struct {
	Message string `json:"message"`
	RunID   string `json:"runId"`
}

// MessageResponse represents a generic message payload used for success responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents a generic error payload used for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
