package model

// Recipient is a configured alert destination. Loaded from configuration,
// read-only at runtime; Number is the lookup key.
type Recipient struct {
	Name     string   `mapstructure:"name" json:"name" validate:"required"`
	Number   string   `mapstructure:"number" json:"number" validate:"required,e164"`
	Cameras  []string `mapstructure:"cameras" json:"cameras"`
	Priority string   `mapstructure:"priority" json:"priority"`
	Carrier  string   `mapstructure:"carrier" json:"carrier,omitempty"`
	Active   bool     `mapstructure:"active" json:"active"`
}

// WantsCamera reports whether the recipient is subscribed to the camera,
// either explicitly or via the "all" filter.
func (r *Recipient) WantsCamera(cameraID string) bool {
	for _, c := range r.Cameras {
		if c == "all" || c == cameraID {
			return true
		}
	}
	return false
}
