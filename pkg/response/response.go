// Package response centralizes HTTP response shapes and helpers.
// Handlers rely on it to keep controllers thin and uniform.
package response

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/repository"
	"github.com/maxviazov/experiment-service/internal/service"
)

// ErrorPayload is the canonical error envelope returned by the API.
type ErrorPayload struct {
	Error       string               `json:"error"`
	Message     string               `json:"message,omitempty"`
	FieldErrors []service.FieldError `json:"field_errors,omitempty"`
}

// MapError converts a domain / infrastructure error into an HTTP status and payload.
func MapError(err error) (int, ErrorPayload) {
	if err == nil {
		return http.StatusOK, ErrorPayload{Error: "ok"}
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, ErrorPayload{
			Error:       "invalid_input",
			Message:     "one or more fields are invalid",
			FieldErrors: service.FieldErrors(err),
		}
	case errors.Is(err, pagination.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorPayload{Error: "invalid_argument", Message: err.Error()}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ErrorPayload{Error: "not_found"}
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, ErrorPayload{Error: "already_exists"}
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, ErrorPayload{Error: "conflict"}
	default:
		return http.StatusInternalServerError, ErrorPayload{Error: "internal_error"}
	}
}

// WriteError writes an error response and aborts the context.
func WriteError(c *gin.Context, err error) {
	status, payload := MapError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err) // surfaced by the access log middleware
	}
	c.AbortWithStatusJSON(status, payload)
}

// WriteData writes a successful JSON response.
func WriteData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Paging headers set by WritePage next to the page body.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderTotalPages = "X-Total-Pages"
)

// WritePage writes a page as JSON and mirrors its navigation in headers:
// X-Total-Count, X-Total-Pages and an RFC 8288 Link with next/prev when they exist.
func WritePage[T any](c *gin.Context, status int, p pagination.PageResult[T]) {
	c.Header(HeaderTotalCount, strconv.FormatInt(p.Total(), 10))
	c.Header(HeaderTotalPages, strconv.FormatInt(p.TotalPages(), 10))

	var links []string
	if p.HasPrev() {
		links = append(links, pageLink(c, p.PageNum()-1, p.PageSize(), "prev"))
	}
	if p.HasNext() {
		links = append(links, pageLink(c, p.PageNum()+1, p.PageSize(), "next"))
	}
	if len(links) > 0 {
		c.Header("Link", strings.Join(links, ", "))
	}
	c.JSON(status, p)
}

func pageLink(c *gin.Context, pageNum, pageSize int, rel string) string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("pageNum", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	return "<" + u.RequestURI() + `>; rel="` + rel + `"`
}
