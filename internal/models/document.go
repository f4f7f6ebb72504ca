package models

// Document is one uploaded file. It lives for a single request.
type Document struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}
