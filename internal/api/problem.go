package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/nftmarket/internal/market"
)

// Problem is an RFC 7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// writeError maps an engine error to its problem response. Errors outside
// the engine taxonomy surface as 500.
func writeError(c *gin.Context, err error) {
	var e *market.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, Problem{
			Type:   "about:blank",
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: err.Error(),
		})
		return
	}

	status := statusForKind(e.Kind)
	c.JSON(status, Problem{
		Type:     "urn:nftmarket:error:" + e.Kind.String(),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   e.Error(),
		Expected: e.Expected,
		Actual:   e.Actual,
	})
}

func statusForKind(kind market.ErrorKind) int {
	switch kind {
	case market.KindAuthorization:
		return http.StatusForbidden
	case market.KindPayment:
		return http.StatusPaymentRequired
	case market.KindValidation:
		return http.StatusBadRequest
	case market.KindStateConflict:
		return http.StatusConflict
	case market.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
