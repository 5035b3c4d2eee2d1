package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stillmotion/internal/core/domain"
	"stillmotion/internal/service"
)

// settingsView never carries secrets, only whether they are set.
type settingsView struct {
	Model       string             `json:"model"`
	Prompt      string             `json:"prompt"`
	Resolution  domain.Resolution  `json:"resolution"`
	AspectRatio domain.AspectRatio `json:"aspect_ratio"`
	APIKeySet   bool               `json:"api_key_set"`
	Delegated   *delegatedView     `json:"delegated,omitempty"`
}

type delegatedView struct {
	ProjectID      string `json:"project_id"`
	Location       string `json:"location"`
	AccessTokenSet bool   `json:"access_token_set"`
}

// settingsUpdate is a partial update; nil fields are left alone.
type settingsUpdate struct {
	Model       *string             `json:"model"`
	Prompt      *string             `json:"prompt"`
	Resolution  *domain.Resolution  `json:"resolution"`
	AspectRatio *domain.AspectRatio `json:"aspect_ratio"`

	// APIKey set to "" clears the explicit key.
	APIKey *string `json:"api_key"`

	// An empty access token keeps the stored one.
	Delegated      *domain.DelegatedConfig `json:"delegated"`
	ClearDelegated bool                    `json:"clear_delegated"`
}

func newSettingsView(s service.Settings) settingsView {
	v := settingsView{
		Model:       s.Generation.Model,
		Prompt:      s.Generation.Prompt,
		Resolution:  s.Generation.Resolution,
		AspectRatio: s.Generation.AspectRatio,
		APIKeySet:   strings.TrimSpace(s.APIKey) != "",
	}
	if s.Delegated != nil {
		v.Delegated = &delegatedView{
			ProjectID:      s.Delegated.ProjectID,
			Location:       s.Delegated.Location,
			AccessTokenSet: s.Delegated.AccessToken != "",
		}
	}
	return v
}

func (u settingsUpdate) apply(s service.Settings) service.Settings {
	if u.Model != nil {
		s.Generation.Model = strings.TrimSpace(*u.Model)
	}
	if u.Prompt != nil {
		s.Generation.Prompt = *u.Prompt
	}
	if u.Resolution != nil {
		s.Generation.Resolution = *u.Resolution
	}
	if u.AspectRatio != nil {
		s.Generation.AspectRatio = *u.AspectRatio
	}
	if u.APIKey != nil {
		s.APIKey = *u.APIKey
	}
	switch {
	case u.ClearDelegated:
		s.Delegated = nil
	case u.Delegated != nil:
		next := *u.Delegated
		if next.AccessToken == "" && s.Delegated != nil {
			next.AccessToken = s.Delegated.AccessToken
		}
		s.Delegated = &next
	}
	return s
}

// GetSettings returns the current settings without secrets.
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsView(a.queue.Settings()))
}

// PutSettings applies a partial settings update.
func (a *API) PutSettings(w http.ResponseWriter, r *http.Request) {
	var update settingsUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}

	err := a.queue.ModifySettings(func(s *service.Settings) {
		*s = update.apply(*s)
	})
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidConfig) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(a.queue.Settings()))
}
