package handlers

// ErrorResponse is the body of a non-huma error, such as a failed probe.
type ErrorResponse struct {
	Status string `json:"status" example:"unavailable"`
	Error  string `json:"error" example:"ledger store unreachable"`
}

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}
