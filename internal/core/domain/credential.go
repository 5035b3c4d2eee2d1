package domain

// CredentialKind tags the Credential union.
type CredentialKind string

const (
	KindAPIKey    CredentialKind = "api_key"
	KindDelegated CredentialKind = "delegated"
)

// Credential is either a static API key or a delegated access token with its
// project/location context.
type Credential struct {
	Kind        CredentialKind
	APIKey      string
	ProjectID   string
	Location    string
	AccessToken string
}

// DelegatedConfig is the user-supplied delegated triple. All three fields are
// needed for a request; project and token decide whether it is used at all.
type DelegatedConfig struct {
	ProjectID   string `json:"project_id"`
	Location    string `json:"location"`
	AccessToken string `json:"access_token"`
}

// IsDelegated reports whether the credential uses bearer tokens.
func (c Credential) IsDelegated() bool {
	return c.Kind == KindDelegated
}

// Validate checks the credential carries everything a request needs.
func (c Credential) Validate() error {
	switch c.Kind {
	case KindDelegated:
		if c.ProjectID == "" || c.AccessToken == "" {
			return ErrMissingCredentials
		}
		if c.Location == "" {
			return ErrMissingLocation
		}
	case KindAPIKey:
		if c.APIKey == "" {
			return ErrMissingCredentials
		}
	default:
		return ErrMissingCredentials
	}
	return nil
}
