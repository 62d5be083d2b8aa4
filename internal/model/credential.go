package model

// Credential is the pair of tokens proving an authenticated session.
// Both tokens are written and cleared together.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Valid reports whether both tokens are present.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}
