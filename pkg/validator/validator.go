package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/praxisdev/identity-api/pkg/errors"
)

// Validator wraps go-playground struct validation and reports failures as
// field errors in the application's shape.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONTagName)
	return &Validator{v: v}
}

// JSONTagName names fields after their json tag so failures match the wire
// shape. Fields without a json tag keep their Go name. The handler package
// registers this on gin's binding engine too, so bind failures and explicit
// validation report identical field names.
func JSONTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Validate returns nil, or an *apperrors.AppError carrying one field error
// per failed rule. The rule tag becomes the error kind.
func (val *Validator) Validate(obj interface{}) error {
	err := val.v.Struct(obj)
	if err == nil {
		return nil
	}

	fields, ok := Fields(err)
	if !ok {
		return apperrors.NewBadRequest("invalid payload", err)
	}
	return apperrors.NewValidation(fields)
}

// Fields extracts the per-field failures from a validation error. gin's
// binding runs the same engine, so ShouldBind failures qualify; malformed
// JSON and other non-rule errors report false.
func Fields(err error) (apperrors.ValidationErrors, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	var fields apperrors.ValidationErrors
	for _, fe := range verrs {
		var meta map[string]any
		if fe.Param() != "" {
			meta = map[string]any{"param": fe.Param()}
		}
		fields.Add(fe.Field(), fe.Tag(), meta)
	}
	return fields, true
}
