package room

type RoomSummary struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Watchers int    `json:"watchers"`
}

type PutDefinitionParams struct {
	Name string
	URL  string
	Subs []SubtitleParams
}

type SubtitleParams struct {
	Lang string
	URL  string
}
