package models

// ImagePayload carries an uploaded image through the persona-creation path.
// The bytes are forwarded to the completion provider as-is; nothing in this
// service decodes them.
type ImagePayload struct {
	Data []byte `json:"-"`
	MIME string `json:"mime"`
}
