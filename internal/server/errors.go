package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vendora/promokit/internal/directory"
	"github.com/vendora/promokit/internal/evaluation"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() error {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, rule, message string) error {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "validation_error",
		Message: message,
		Details: gin.H{"field": field, "rule": rule},
	}
}

// AbortWithError maps domain errors onto HTTP responses. Unrecognized
// errors become an opaque 500 so internals never leak to clients.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	var definition *promotiondomain.DefinitionError
	if errors.As(err, &definition) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{
			"code":       "invalid_promotion_definition",
			"message":    definition.Error(),
			"violations": definition.Violations,
		}})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "something went wrong"

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, promotiondomain.ErrNotFound),
		errors.Is(err, directory.ErrClientNotFound),
		errors.Is(err, directory.ErrProductNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = "resource not found"
	case errors.Is(err, promotiondomain.ErrInvalidTenant):
		status = http.StatusUnauthorized
		code = "invalid_tenant"
		message = "tenant could not be resolved"
	case errors.Is(err, promotiondomain.ErrInvalidID):
		status = http.StatusBadRequest
		code = "invalid_promotion_id"
		message = "promotion id is not valid"
	case errors.Is(err, promotiondomain.ErrInvalidTransition):
		status = http.StatusConflict
		code = "invalid_status_transition"
		message = "requested status transition is not allowed"
	case errors.Is(err, promotiondomain.ErrFinished):
		status = http.StatusConflict
		code = "promotion_finished"
		message = "finished promotions cannot change status"
	case errors.Is(err, evaluation.ErrInvalidOrder):
		status = http.StatusBadRequest
		code = "invalid_order"
		message = "order payload is not valid"
	case errors.Is(err, ledgerdomain.ErrCommitFailed):
		// Nothing was committed; the client may retry the evaluation.
		status = http.StatusServiceUnavailable
		code = "ledger_commit_failed"
		message = "could not commit promotion usage, retry the evaluation"
	case errors.Is(err, ledgerdomain.ErrInvalidDelta):
		status = http.StatusBadRequest
		code = "invalid_ledger_delta"
		message = "reversal payload is not valid"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}
