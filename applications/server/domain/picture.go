package domain

const PictureType = "pictures"

type Picture struct {
	Data        string `json:"data"`
	Ts          int64  `json:"ts"`
	FormURL     string `json:"formUrl"`
	Transferred bool   `json:"transferred"`
}

type PictureRecord struct {
	GUID   string  `json:"guid"`
	Type   string  `json:"type"`
	Fields Picture `json:"fields"`
}

type PictureList struct {
	Count int             `json:"count"`
	List  []PictureRecord `json:"list"`
}
