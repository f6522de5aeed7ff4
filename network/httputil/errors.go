package httputil

import (
	"net/http"
)

// HandleError writes a DefaultErrorJson with the given message and status
// code to the response.
func HandleError(w http.ResponseWriter, message string, code int) {
	errJson := &DefaultErrorJson{
		Message: message,
		Code:    code,
	}
	WriteError(w, errJson)
}
