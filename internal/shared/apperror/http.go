package apperror

import (
	"errors"
	"net/http"
	"os"
)

// HTTPError is the transport view of an error.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func isProduction() bool {
	return os.Getenv("APP_ENV") == "production"
}

// ToHTTP maps any error to its HTTP representation. Errors that are not
// *AppError become 500; their text is exposed only outside production.
func ToHTTP(err error) HTTPError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return HTTPError{
			Status:  status,
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	httpErr := HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "Internal server error",
	}
	if err != nil && !isProduction() {
		httpErr.Details = err.Error()
	}
	return httpErr
}
