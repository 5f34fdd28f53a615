package apperrors

import "net/http"

type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeForbidden               Code = "FORBIDDEN"
	CodeAlreadyConnected        Code = "ALREADY_CONNECTED"
	CodeRequestAlreadyPending   Code = "REQUEST_ALREADY_PENDING"
	CodeSelfRequest             Code = "SELF_REQUEST"
	CodeNotConnected            Code = "NOT_CONNECTED"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeChannelUnavailable      Code = "CHANNEL_UNAVAILABLE"
	CodeInvalidArgument         Code = "INVALID_ARGUMENT"
	CodeInternal                Code = "INTERNAL"
)

// HTTPStatus maps an error code to the status returned by the REST layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotConnected:
		return http.StatusForbidden
	case CodeAlreadyConnected, CodeRequestAlreadyPending, CodeInvalidStatusTransition:
		return http.StatusConflict
	case CodeSelfRequest, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeChannelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
