package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stillmotion/internal/core/domain"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) string { return values[key] }
}

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		Name   string
		Given  string
		Expect string
	}{
		{"Plain", "abc123", "abc123"},
		{"Whitespace", "  abc123\n", "abc123"},
		{"DoubleQuotes", `"abc123"`, "abc123"},
		{"QuotesAndInnerWhitespace", `  " abc123 "  `, "abc123"},
		{"SingleQuotes", "'abc123'", "abc123"},
		{"OnlyOneLayer", `""abc123""`, `"abc123"`},
		{"Mismatched", `"abc123'`, `"abc123'`},
		{"Empty", `""`, ""},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, SanitizeKey(c.Given))
		})
	}
}

func TestResolveCredentialDelegated(t *testing.T) {
	cred, err := ResolveCredential("ignored", &domain.DelegatedConfig{
		ProjectID:   "proj",
		Location:    "europe-west4",
		AccessToken: " tok ",
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.KindDelegated, cred.Kind)
	assert.Equal(t, "proj", cred.ProjectID)
	assert.Equal(t, "europe-west4", cred.Location)
	assert.Equal(t, "tok", cred.AccessToken)
	assert.NoError(t, cred.Validate())
}

func TestResolveCredentialDelegatedEmptyLocation(t *testing.T) {
	cred, err := ResolveCredential("", &domain.DelegatedConfig{ProjectID: "proj", AccessToken: "tok"}, nil)

	require.NoError(t, err)
	assert.True(t, cred.IsDelegated())
	assert.ErrorIs(t, cred.Validate(), domain.ErrMissingLocation)
}

func TestResolveCredentialPartialDelegatedFallsBack(t *testing.T) {
	cred, err := ResolveCredential(`"key-1"`, &domain.DelegatedConfig{ProjectID: "proj", Location: "us-central1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.KindAPIKey, cred.Kind)
	assert.Equal(t, "key-1", cred.APIKey)
}

func TestResolveCredentialPartialDelegatedNoKey(t *testing.T) {
	_, err := ResolveCredential("", &domain.DelegatedConfig{AccessToken: "tok"}, envMap(nil))

	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "credentials")
}

func TestResolveCredentialAmbientFallback(t *testing.T) {
	cred, err := ResolveCredential("   ", nil, envMap(map[string]string{"API_KEY": " 'ambient' "}))

	require.NoError(t, err)
	assert.Equal(t, "ambient", cred.APIKey)
}

func TestResolveCredentialExplicitWins(t *testing.T) {
	cred, err := ResolveCredential("explicit", nil, envMap(map[string]string{"GEMINI_API_KEY": "ambient"}))

	require.NoError(t, err)
	assert.Equal(t, "explicit", cred.APIKey)
}
