package xerr

import "net/http"

const (
	ErrInternalServer = 500 // HTTP 500
	ErrUpstream       = 502 // HTTP 502

	ErrBadRequest       = 1000 // HTTP 400
	ErrInvalidInput     = 1001 // HTTP 400
	ErrMissingParameter = 1002 // HTTP 400
	ErrInvalidJSON      = 1003 // HTTP 400

	ErrNotFound         = 1300 // HTTP 404
	ErrResourceNotFound = 1301 // HTTP 404

	ErrConflict = 1400 // HTTP 409
)

// HTTPStatus 把业务错误码映射成 HTTP 状态码
func HTTPStatus(code int) int {
	switch {
	case code == ErrUpstream:
		return http.StatusBadGateway
	case code >= 1000 && code < 1100:
		return http.StatusBadRequest
	case code >= 1300 && code < 1400:
		return http.StatusNotFound
	case code >= 1400 && code < 1500:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
