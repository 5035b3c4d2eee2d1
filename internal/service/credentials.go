package service

import (
	"os"
	"strings"

	"stillmotion/internal/core/domain"
)

// EnvLookup returns the value of an environment variable, or "" when unset.
type EnvLookup func(key string) string

// ambientKeyVars are consulted in order when no explicit key is supplied.
var ambientKeyVars = []string{"GEMINI_API_KEY", "API_KEY"}

// OSEnv reads the process environment.
func OSEnv(key string) string {
	return os.Getenv(key)
}

// ResolveCredential picks the authentication mode for a request.
//
// A delegated credential is returned only when both project id and token are
// present; its location is copied as given and checked by Credential.Validate
// before any request. Otherwise the explicit key, then the ambient key, is
// sanitized and used.
func ResolveCredential(explicitKey string, delegated *domain.DelegatedConfig, env EnvLookup) (domain.Credential, error) {
	if delegated != nil {
		project := strings.TrimSpace(delegated.ProjectID)
		token := SanitizeKey(delegated.AccessToken)
		if project != "" && token != "" {
			return domain.Credential{
				Kind:        domain.KindDelegated,
				ProjectID:   project,
				Location:    strings.TrimSpace(delegated.Location),
				AccessToken: token,
			}, nil
		}
	}

	key := SanitizeKey(explicitKey)
	if key == "" && env != nil {
		for _, name := range ambientKeyVars {
			if key = SanitizeKey(env(name)); key != "" {
				break
			}
		}
	}
	if key == "" {
		return domain.Credential{}, domain.ErrMissingCredentials
	}
	return domain.Credential{Kind: domain.KindAPIKey, APIKey: key}, nil
}

// SanitizeKey trims whitespace and strips one layer of matching quotes.
func SanitizeKey(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
