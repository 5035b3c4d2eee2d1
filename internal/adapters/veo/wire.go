package veo

import (
	"strings"

	"stillmotion/internal/core/domain"
)

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt string      `json:"prompt"`
	Image  *inlineData `json:"image,omitempty"`
}

type inlineData struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type parameters struct {
	SampleCount     int    `json:"sampleCount"`
	Resolution      string `json:"resolution,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	StorageURI      string `json:"storageUri,omitempty"` // Vertex AI only
}

func buildPredictRequest(req domain.GenerateRequest) predictRequest {
	in := instance{Prompt: req.Prompt}
	if req.ImageBase64 != "" {
		in.Image = &inlineData{BytesBase64Encoded: req.ImageBase64, MimeType: req.ImageMIMEType}
	}
	return predictRequest{
		Instances: []instance{in},
		Parameters: parameters{
			SampleCount:     req.SampleCount,
			Resolution:      string(req.Resolution),
			AspectRatio:     string(req.AspectRatio),
			DurationSeconds: req.DurationSeconds,
		},
	}
}

// rawOperation accepts the Gemini API and Vertex AI operation shapes.
type rawOperation struct {
	Name     string       `json:"name"`
	Done     bool         `json:"done"`
	Error    *rawStatus   `json:"error,omitempty"`
	Response *rawResponse `json:"response,omitempty"`
}

type rawStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type rawResponse struct {
	// Gemini API
	GenerateVideoResponse *struct {
		GeneratedSamples        []rawSample `json:"generatedSamples"`
		RAIMediaFilteredReasons []string    `json:"raiMediaFilteredReasons"`
	} `json:"generateVideoResponse,omitempty"`

	// Vertex AI
	Videos []struct {
		GCSURI   string `json:"gcsUri"`
		MimeType string `json:"mimeType"`
	} `json:"videos,omitempty"`
	RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons,omitempty"`

	// already normalised (SDK style)
	GeneratedVideos []domain.GeneratedVideo `json:"generatedVideos,omitempty"`
}

type rawSample struct {
	Video struct {
		URI string `json:"uri"`
	} `json:"video"`
}

func (r rawOperation) normalize() *domain.Operation {
	op := &domain.Operation{Name: r.Name, Done: r.Done}
	if r.Error != nil {
		op.Error = &domain.OperationError{Code: r.Error.Code, Message: r.Error.Message}
	}
	if r.Response == nil {
		return op
	}

	resp := &domain.GenerateVideoResponse{}
	resp.RAIMediaFilteredReasons = append(resp.RAIMediaFilteredReasons, r.Response.RAIMediaFilteredReasons...)
	resp.GeneratedVideos = append(resp.GeneratedVideos, r.Response.GeneratedVideos...)
	if g := r.Response.GenerateVideoResponse; g != nil {
		resp.RAIMediaFilteredReasons = append(resp.RAIMediaFilteredReasons, g.RAIMediaFilteredReasons...)
		for _, s := range g.GeneratedSamples {
			if s.Video.URI != "" {
				resp.GeneratedVideos = append(resp.GeneratedVideos, domain.GeneratedVideo{Video: &domain.VideoRef{URI: s.Video.URI}})
			}
		}
	}
	for _, v := range r.Response.Videos {
		if uri := strings.TrimSpace(v.GCSURI); uri != "" {
			resp.GeneratedVideos = append(resp.GeneratedVideos, domain.GeneratedVideo{Video: &domain.VideoRef{URI: uri}})
		}
	}
	op.Response = resp
	return op
}
