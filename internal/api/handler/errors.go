// Package handler implements the runair HTTP endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/api/middleware"
	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/api/response"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/paging"
	"github.com/runair/runair/internal/running"
)

// Paging defaults for listing endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var validate = validator.New()

// pageParams bounds the paging parameters accepted over HTTP. MaxPageSize
// must match the lte tag.
type pageParams struct {
	Page int `validate:"gte=0"`
	Size int `validate:"gte=1,lte=100"`
}

// writeError maps domain errors onto problem responses. Unknown errors are
// logged and reported as 500 without leaking their text.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, location.ErrNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, location.ErrInvalidID),
		errors.Is(err, paging.ErrInvalidQuery),
		errors.Is(err, running.ErrNoReadings):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func locationID(r *http.Request) (location.ID, error) {
	return location.ParseID(chi.URLParam(r, "locationId"))
}

// pageQuery reads ?page= and ?size=. It reports every malformed parameter as
// a field error.
func pageQuery(r *http.Request) (paging.Query, []models.FieldError) {
	var fieldErrs []models.FieldError

	page, ok := intParam(r, "page", 0)
	if !ok {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "page", Message: "must be an integer", Code: "INVALID"})
	}
	size, ok := intParam(r, "size", DefaultPageSize)
	if !ok {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "size", Message: "must be an integer", Code: "INVALID"})
	}
	if len(fieldErrs) > 0 {
		return paging.Query{}, fieldErrs
	}

	if err := validate.Struct(pageParams{Page: page, Size: size}); err != nil {
		return paging.Query{}, toFieldErrors(err)
	}

	q, err := paging.NewQuery(page, size)
	if err != nil {
		return paging.Query{}, []models.FieldError{{Field: "page", Message: err.Error(), Code: "INVALID"}}
	}
	return q, nil
}

func toFieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Message: err.Error(), Code: "INVALID"}}
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "is invalid"
		switch fe.Tag() {
		case "gte":
			msg = "must be " + fe.Param() + " or greater"
		case "lte":
			msg = "must be at most " + fe.Param()
		}
		out = append(out, models.FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: msg,
			Code:    "OUT_OF_RANGE",
		})
	}
	return out
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
