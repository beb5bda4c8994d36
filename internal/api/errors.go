package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/safar/storefront/internal/catalogimport"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/payment"
	"go.uber.org/zap"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnprocessable  = "UNPROCESSABLE_ENTITY"
	CodePaymentFailed  = "PAYMENT_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeInsufficient   = "INSUFFICIENT_STOCK"
	CodeStaleVersion   = "STALE_VERSION"
	CodeBadTransition  = "INVALID_TRANSITION"
	CodeBadSpreadsheet = "INVALID_SPREADSHEET"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{database.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{database.ErrAuthenticationRequired, http.StatusUnauthorized, CodeUnauthorized},
	{database.ErrAuthorizationDenied, http.StatusForbidden, CodeForbidden},
	{database.ErrPaymentProvider, http.StatusForbidden, CodePaymentFailed},

	{database.ErrInsufficientStock, http.StatusConflict, CodeInsufficient},
	{database.ErrOptimisticLockFailed, http.StatusConflict, CodeStaleVersion},
	{database.ErrInvalidTransition, http.StatusConflict, CodeBadTransition},
	{database.ErrDuplicateReview, http.StatusConflict, CodeConflict},
	{database.ErrAlreadyExists, http.StatusConflict, CodeConflict},
	{database.ErrAlreadyPaid, http.StatusConflict, CodeConflict},

	{database.ErrInvalidShipping, http.StatusUnprocessableEntity, CodeUnprocessable},

	{database.ErrInvalidStatus, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidQuantity, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidRating, http.StatusBadRequest, CodeBadRequest},
	{database.ErrEmptyCart, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidRole, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidPrice, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidSchedule, http.StatusBadRequest, CodeBadRequest},
	{database.ErrInvalidCursor, http.StatusBadRequest, CodeBadRequest},
	{payment.ErrInvalidSignature, http.StatusBadRequest, CodeBadRequest},
	{catalogimport.ErrEmptySheet, http.StatusBadRequest, CodeBadSpreadsheet},
	{catalogimport.ErrMissingColumn, http.StatusBadRequest, CodeBadSpreadsheet},
	{catalogimport.ErrUnreadable, http.StatusBadRequest, CodeBadSpreadsheet},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// fail writes the error envelope for err. Internal errors are logged with
// their cause and answered with a generic message.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", zap.Error(err))
		message = "an unexpected error occurred"
	}
	_ = c.Error(err)

	if c.Request.Method != http.MethodGet {
		notify(c, message)
	}
	abortWith(c, status, code, message)
}

// invalid reports a request body or query that failed binding.
func invalid(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	var details []FieldError
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details = append(details, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
		}
	}

	message := "request validation failed"
	if len(details) == 0 {
		message = "malformed request: " + err.Error()
	}
	if c.Request.Method != http.MethodGet {
		notify(c, message)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Message: message,
		Error:   &ErrorInfo{Code: CodeValidation, Message: message, Details: details},
	})
}
