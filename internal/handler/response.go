package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/praxisdev/identity-api/pkg/errors"
)

type Response struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message,omitempty"`
	Data    interface{}                `json:"data,omitempty"`
	Errors  apperrors.ValidationErrors `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes an error in the envelope shape. AppErrors carry their
// own status code; validation failures include the per-field breakdown so
// clients can render errors next to inputs. Anything else is reported as an
// opaque 500, never leaking the underlying message.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternal(err)
	}
	c.JSON(appErr.StatusCode(), &Response{
		Status:  "error",
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}
