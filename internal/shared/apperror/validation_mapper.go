package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// recipient_phone -> Recipient Phone
func formatFieldName(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	caser := cases.Title(language.English)
	return caser.String(s)
}

// MapValidationError turns binding errors into a VALIDATION_ERROR AppError.
// Only the first failing field is reported in the message; every failing
// field is listed in Details.
func MapValidationError(err error) *AppError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return New(CodeValidation, "Invalid input", http.StatusBadRequest).WithDetails(errorText(err))
	}

	fields := make([]map[string]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}

	// Field() already returns the json name because Init registers a tag name func.
	e := errs[0]
	humanReadableField := formatFieldName(e.Field())

	var appErr *AppError
	switch e.Tag() {
	case "required":
		appErr = RequiredField(humanReadableField)
	case "oneof":
		appErr = New(CodeValidation,
			fmt.Sprintf("%s must be one of: %s", humanReadableField, strings.ReplaceAll(e.Param(), " ", ", ")),
			http.StatusBadRequest)
	case "min", "max":
		appErr = New(CodeValidation,
			fmt.Sprintf("%s must satisfy %s=%s", humanReadableField, e.Tag(), e.Param()),
			http.StatusBadRequest)
	default:
		appErr = InvalidField(humanReadableField)
	}
	return appErr.WithDetails(fields)
}

func errorText(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
