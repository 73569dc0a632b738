package pagination

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100 // keep in step with the lte tag on Request.PageSize
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request carries the paging parameters a client asked for.
// Bind from query parameters with gin: pageNum, pageSize.
type Request struct {
	PageNum  int `form:"pageNum" json:"pageNum" validate:"gte=1"`
	PageSize int `form:"pageSize" json:"pageSize" validate:"gte=1,lte=100"`
}

// Normalize applies defaults and caps the page size at maxSize (when maxSize > 0).
func (r Request) Normalize(defaultSize, maxSize int) Request {
	if r.PageNum <= 0 {
		r.PageNum = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = defaultSize
	}
	if maxSize > 0 && r.PageSize > maxSize {
		r.PageSize = maxSize
	}
	return r
}

// Offset returns the SQL offset for the requested page, saturating at math.MaxInt.
func (r Request) Offset() int {
	if r.PageNum <= 1 || r.PageSize <= 0 {
		return 0
	}
	if offsetOverflows(r) {
		return math.MaxInt
	}
	return (r.PageNum - 1) * r.PageSize
}

func offsetOverflows(r Request) bool {
	return r.PageSize > 0 && r.PageNum-1 > math.MaxInt/r.PageSize
}

// Limit returns the SQL limit for the requested page.
func (r Request) Limit() int { return r.PageSize }

// Validate checks the ranges; call it after Normalize if defaults are wanted.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if offsetOverflows(r) {
		return fmt.Errorf("%w: pageNum %d is out of range for pageSize %d", ErrInvalidArgument, r.PageNum, r.PageSize)
	}
	return nil
}
