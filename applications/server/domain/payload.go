package domain

import "encoding/json"

const (
	StatusOK      = "ok"
	StatusSuccess = "Success"
	StatusFail    = "Fail"

	noConfigMessage = "No config."
)

// FormHTML is the payload of the form fetch and submit operations.
// A nil HTML means the page could not be produced.
type FormHTML struct {
	HTML  *string `json:"html"`
	Error string  `json:"error,omitempty"`
}

type FormList struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type Status struct {
	Status string `json:"status"`
}

type PictureListing struct {
	Status   string      `json:"status"`
	Pictures PictureList `json:"pictures"`
}

func NoConfigFormHTML() FormHTML {
	empty := ""
	return FormHTML{HTML: &empty, Error: noConfigMessage}
}

func NoConfigFormList() FormList {
	return FormList{Error: noConfigMessage}
}
