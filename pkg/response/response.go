// Package response builds JSON:API documents for API responses.
package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const attributesPointer = "/data/attributes/"

// Document is a top-level JSON:API document. Exactly one of Data and Errors
// is set, Meta may accompany either or stand alone.
type Document struct {
	Data   any            `json:"data,omitempty"`
	Errors []Error        `json:"errors,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Resource is a single JSON:API resource object.
type Resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
	Links      *Links `json:"links,omitempty"`
	Meta       any    `json:"meta,omitempty"`
}

type Links struct {
	Self string `json:"self"`
}

// Error is a JSON:API error object.
type Error struct {
	Status string  `json:"status"`
	Title  string  `json:"title"`
	Detail string  `json:"detail,omitempty"`
	Source *Source `json:"source,omitempty"`
}

type Source struct {
	Pointer string `json:"pointer"`
}

func Single(res Resource) Document {
	return Document{Data: res}
}

// Collection always renders data as an array, even when empty.
func Collection(res []Resource) Document {
	if res == nil {
		res = []Resource{}
	}
	return Document{Data: res}
}

func MetaDocument(meta map[string]any) Document {
	return Document{Meta: meta}
}

// ErrorDocument builds a document holding one error for status.
func ErrorDocument(status int, detail string) Document {
	return Document{
		Errors: []Error{newError(status, detail)},
	}
}

// ValidationErrorDocument builds a 400 document with one error per failed
// field, each pointing at the offending attribute.
func ValidationErrorDocument(err error) Document {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrorDocument(http.StatusBadRequest, "Invalid request attributes.")
	}

	errs := make([]Error, 0, len(verrs))
	for _, e := range verrs {
		apiErr := newError(http.StatusBadRequest, messageForTag(e.Tag()))
		apiErr.Source = &Source{Pointer: attributesPointer + e.Field()}
		errs = append(errs, apiErr)
	}

	return Document{Errors: errs}
}

func newError(status int, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "max":
		return "Value is too long."
	case "min", "gte":
		return "Value is too small."
	case "lte":
		return "Value is too large."
	default:
		return "Invalid value."
	}
}
