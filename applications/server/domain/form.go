package domain

import (
	"mime"
	"net/textproto"
)

type FieldType string

const (
	FieldTypeText FieldType = "text"
	FieldTypeFile FieldType = "file"
)

// FormField describes one input of a client-submitted form.
// Value is nil when the client did not send a value at all.
type FormField struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Value     *string   `json:"value,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Extension string    `json:"extension,omitempty"`
}

type MultipartPart struct {
	Header textproto.MIMEHeader
	Body   []byte
}

// Name returns the form-data name of the part.
func (p MultipartPart) Name() string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["name"]
}
