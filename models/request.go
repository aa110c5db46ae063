package models

// UploadDocumentRequest carries an uploaded file into the service layer.
type UploadDocumentRequest struct {
	Filename string
	Content  []byte
	// Origin records how the document arrived ("upload" or "watch").
	Origin string
}

type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}
