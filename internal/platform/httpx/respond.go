// Package httpx translates domain errors into JSON HTTP responses.
package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medline/medline/internal/platform/apperr"
)

// Error writes err as a JSON body with an "error" field, mapping the error
// kind onto a status code. Unclassified errors become 500s with a generic
// message so internals never leak to clients.
func Error(c echo.Context, err error) error {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	status := http.StatusInternalServerError
	switch kind {
	case apperr.Validation, apperr.TemplateNotSet:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Unauthorized:
		status = http.StatusUnauthorized
	case apperr.Conflict:
		status = http.StatusConflict
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
