package httpcore

// Status is the named HTTP status variant spec §4.2 "Status-code
// mapping" requires. Grounded on original_source/NetworkPkg/HttpDxe's
// status table (the EDK2 original this spec distills), since no example
// in the corpus encodes this exact enum — net/http's own status list is
// untyped ints, not a closed variant set, so it is reused here only as a
// source of the numeric/name pairing, not as the type itself.
type Status int

const (
	StatusUnsupportedStatus Status = iota

	StatusContinue
	StatusSwitchingProtocols

	StatusOK
	StatusCreated
	StatusAccepted
	StatusNonAuthoritative
	StatusNoContent
	StatusResetContent
	StatusPartialContent

	StatusMultipleChoices
	StatusMovedPermanently
	StatusFound
	StatusSeeOther
	StatusNotModified
	StatusUseProxy
	StatusTemporaryRedirect

	StatusBadRequest
	StatusUnauthorized
	StatusPaymentRequired
	StatusForbidden
	StatusNotFound
	StatusMethodNotAllowed
	StatusNotAcceptable
	StatusProxyAuthRequired
	StatusRequestTimeout
	StatusConflict
	StatusGone
	StatusLengthRequired
	StatusPreconditionFailed
	StatusRequestEntityTooLarge
	StatusRequestUriTooLarge
	StatusUnsupportedMediaType
	StatusRequestedRangeNotSatisfied
	StatusExpectationFailed

	StatusInternalServerError
	StatusNotImplemented
	StatusBadGateway
	StatusServiceUnavailable
	StatusGatewayTimeout
	StatusHttpVersionNotSupported
)

var codeToStatus = map[int]Status{
	100: StatusContinue,
	101: StatusSwitchingProtocols,

	200: StatusOK,
	201: StatusCreated,
	202: StatusAccepted,
	203: StatusNonAuthoritative,
	204: StatusNoContent,
	205: StatusResetContent,
	206: StatusPartialContent,

	300: StatusMultipleChoices,
	301: StatusMovedPermanently,
	302: StatusFound,
	303: StatusSeeOther,
	304: StatusNotModified,
	305: StatusUseProxy,
	307: StatusTemporaryRedirect,

	400: StatusBadRequest,
	401: StatusUnauthorized,
	402: StatusPaymentRequired,
	403: StatusForbidden,
	404: StatusNotFound,
	405: StatusMethodNotAllowed,
	406: StatusNotAcceptable,
	407: StatusProxyAuthRequired,
	408: StatusRequestTimeout,
	409: StatusConflict,
	410: StatusGone,
	411: StatusLengthRequired,
	412: StatusPreconditionFailed,
	413: StatusRequestEntityTooLarge,
	414: StatusRequestUriTooLarge,
	415: StatusUnsupportedMediaType,
	416: StatusRequestedRangeNotSatisfied,
	417: StatusExpectationFailed,

	500: StatusInternalServerError,
	501: StatusNotImplemented,
	502: StatusBadGateway,
	503: StatusServiceUnavailable,
	504: StatusGatewayTimeout,
	505: StatusHttpVersionNotSupported,
}

// statusFromCode maps a numeric status code to its named variant,
// StatusUnsupportedStatus for anything not in the table (spec §4.2).
func statusFromCode(code int) Status {
	if s, ok := codeToStatus[code]; ok {
		return s
	}
	return StatusUnsupportedStatus
}
