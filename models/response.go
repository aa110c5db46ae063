package models

type UploadResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Chunks    int    `json:"chunks"`
}

type AskResponse struct {
	Answer     string           `json:"answer"`
	Language   string           `json:"language"`
	SessionID  string           `json:"session_id"`
	SourceDocs []SourceDocument `json:"sources,omitempty"`
}

// ListSessionsResponse is the response of the GET /sessions endpoint.
type ListSessionsResponse struct {
	Count    int           `json:"count"`
	Sessions []SessionInfo `json:"sessions"`
}

// ErrorResponse is returned on every failure path.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
