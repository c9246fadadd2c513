package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"storefront-auth/pkg/apperror"
)

type Response struct {
	Success    bool   `json:"success"`
	Message    string `json:"msg"`
	Code       string `json:"code,omitempty"`
	Data       any    `json:"data,omitempty"`
	Errors     any    `json:"errors,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// ResponseJSON writes JSON response with custom status code
func ResponseJSON(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	if response.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(response.RetryAfter))
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// ------------- Success responses -------------

// returns 200 OK
func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// returns 201 Created
func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// ------------- Error responses -------------

// ResponseError writes the stable error shape {success:false, msg, code}.
func ResponseError(w http.ResponseWriter, status int, code, message string, errors any, retryAfter int) {
	ResponseJSON(w, status, Response{
		Success:    false,
		Message:    message,
		Code:       code,
		Errors:     errors,
		RetryAfter: retryAfter,
	})
}

// returns 400 Bad Request
func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	ResponseError(w, http.StatusBadRequest, string(apperror.KindValidation), message, errors, 0)
}

// returns 401 Unauthorized
func ResponseUnauthorized(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusUnauthorized, string(apperror.KindInvalidToken), message, nil, 0)
}

// returns 403 Forbidden
func ResponseForbidden(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusForbidden, string(apperror.KindForbidden), message, nil, 0)
}

// returns 500 Internal Server Error; never carries internal detail
func ResponseInternalError(w http.ResponseWriter) {
	ResponseError(w, http.StatusInternalServerError, string(apperror.KindInternal), "internal error", nil, 0)
}

// ResponseAppError writes a typed service error. Internal errors collapse to
// the generic 500 body.
func ResponseAppError(w http.ResponseWriter, err *apperror.Error) {
	if err.Kind == apperror.KindInternal {
		ResponseInternalError(w)
		return
	}

	var fields any
	if len(err.Fields) > 0 {
		fields = err.Fields
	}
	ResponseError(w, err.Status(), string(err.Kind), err.Msg, fields, err.RetryAfterSeconds())
}
