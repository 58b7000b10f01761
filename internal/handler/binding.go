package handler

import (
	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/praxisdev/identity-api/pkg/validator"
)

// Binding errors must name fields the way the wire does, so gin's engine is
// pointed at json tags once, before any struct metadata is cached.
func init() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		v.RegisterTagNameFunc(validator.JSONTagName)
	}
}

// NewBindingErrorResponse shapes a request-binding failure. Rule failures
// carry the per-field breakdown; malformed payloads keep the parser message.
func NewBindingErrorResponse(err error) *Response {
	if fields, ok := validator.Fields(err); ok {
		return &Response{
			Status:  "error",
			Message: "invalid request",
			Errors:  fields,
		}
	}
	return NewErrorResponse(err.Error())
}
