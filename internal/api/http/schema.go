package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/vadimbarashkov/petit/internal/models"
	"github.com/vadimbarashkov/petit/pkg/response"
)

const (
	shortcodesType  = "shortcodes"
	suggestionsType = "suggestions"
	shortcodesPath  = "/api/v1/shortcodes/"
)

// createAttributes are the attributes accepted when creating a shortcode.
// SSL is loosely typed because clients send booleans and strings alike.
type createAttributes struct {
	Name        string `json:"name" validate:"omitempty,alphanum,max=64"`
	Destination string `json:"destination" validate:"required,max=2048"`
	SSL         any    `json:"ssl"`
}

type createRequest struct {
	Data struct {
		Type       string           `json:"type"`
		Attributes createAttributes `json:"attributes"`
	} `json:"data"`
}

// modifyAttributes are the attributes accepted when modifying a shortcode.
// Absent attributes keep their stored value.
type modifyAttributes struct {
	Destination *string `json:"destination" validate:"omitempty,max=2048"`
	SSL         any     `json:"ssl"`
}

type modifyRequest struct {
	Data struct {
		Type       string           `json:"type"`
		Attributes modifyAttributes `json:"attributes"`
	} `json:"data"`
}

type shortcodeAttributes struct {
	Name        string `json:"name"`
	Destination string `json:"destination"`
	SSL         bool   `json:"ssl"`
}

type shortcodeMeta struct {
	AccessCount   int64      `json:"access_count"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	GeneratedLink string     `json:"generated_link"`
}

type suggestionAttributes struct {
	Name string `json:"name"`
}

func selfLink(apiBaseURL, name string) string {
	return apiBaseURL + shortcodesPath + name
}

func generatedLink(serviceBaseURL, name string) string {
	return serviceBaseURL + "/" + name
}

func toResource(sc *models.Shortcode, opts Options) response.Resource {
	return response.Resource{
		Type: shortcodesType,
		ID:   sc.Name,
		Attributes: shortcodeAttributes{
			Name:        sc.Name,
			Destination: sc.Destination,
			SSL:         sc.IsSSL(),
		},
		Links: &response.Links{
			Self: selfLink(opts.APIBaseURL, sc.Name),
		},
		Meta: shortcodeMeta{
			AccessCount:   sc.Count(),
			CreatedAt:     sc.CreatedAt,
			UpdatedAt:     sc.UpdatedAt,
			GeneratedLink: generatedLink(opts.ServiceBaseURL, sc.Name),
		},
	}
}

func toCollection(scs []*models.Shortcode, opts Options) response.Document {
	res := make([]response.Resource, 0, len(scs))
	for _, sc := range scs {
		res = append(res, toResource(sc, opts))
	}
	return response.Collection(res)
}

var (
	emptyRequestBodyResponse   = response.ErrorDocument(http.StatusBadRequest, "Request body is empty.")
	invalidRequestBodyResponse = response.ErrorDocument(http.StatusBadRequest, "Request body could not be decoded.")
	insecureRequestResponse    = response.ErrorDocument(http.StatusForbidden, "Requests must be made over https.")
	serverErrorResponse        = response.ErrorDocument(http.StatusInternalServerError, "An internal server error occurred.")
)

// errorStatus maps service errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSuggestionExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the document for a mapped status. Unmapped errors
// never leak their text.
func errorResponse(status int) response.Document {
	switch status {
	case http.StatusConflict:
		return response.ErrorDocument(status, models.ErrConflict.Error())
	case http.StatusBadRequest:
		return response.ErrorDocument(status, models.ErrValidation.Error())
	case http.StatusNotFound:
		return response.ErrorDocument(status, models.ErrNotFound.Error())
	case http.StatusServiceUnavailable:
		return response.ErrorDocument(status, models.ErrSuggestionExhausted.Error())
	default:
		return serverErrorResponse
	}
}
