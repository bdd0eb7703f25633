package model

// ProcessResult is returned to the webhook layer for every inbound event.
// Suppression and absent configuration are successes, not errors.
type ProcessResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
}

func SuccessResult(message string, recipients int) *ProcessResult {
	return &ProcessResult{Success: true, Message: message, Recipients: recipients}
}

func FailureResult(err error) *ProcessResult {
	return &ProcessResult{Success: false, Error: err.Error()}
}
