package definition

type Subtitle struct {
	Lang string `json:"lang" mapstructure:"lang" validate:"required"`
	URL  string `json:"url" mapstructure:"url" validate:"required"`
}

// Definition describes a room that can be opened by name.
type Definition struct {
	URL  string     `json:"url" mapstructure:"url" validate:"required,url"`
	Subs []Subtitle `json:"subs" mapstructure:"subs" validate:"dive"`
}
