package protocol

// ResultCode is the status a server attaches to a response.
type ResultCode int32

const (
	ResultOK             ResultCode = 0  // Success
	ResultUnknown        ResultCode = 1  // Unspecified failure
	ResultBadRequest     ResultCode = 2  // Request body could not be decoded
	ResultNotFound       ResultCode = 3  // Peer or resource does not exist
	ResultNoPermission   ResultCode = 4  // Caller may not perform the request
	ResultTooFrequent    ResultCode = 5  // Rate limited, retry later
	ResultSessionExpired ResultCode = 6  // Login is no longer valid
	ResultLoginRejected  ResultCode = 7  // Credentials refused
	ResultServerBusy     ResultCode = 8  // Temporary overload
	ResultServerError    ResultCode = 99 // Internal server error
)

// String returns the string representation of the result code.
func (rc ResultCode) String() string {
	switch rc {
	case ResultOK:
		return "OK"
	case ResultUnknown:
		return "Unknown"
	case ResultBadRequest:
		return "BadRequest"
	case ResultNotFound:
		return "NotFound"
	case ResultNoPermission:
		return "NoPermission"
	case ResultTooFrequent:
		return "TooFrequent"
	case ResultSessionExpired:
		return "SessionExpired"
	case ResultLoginRejected:
		return "LoginRejected"
	case ResultServerBusy:
		return "ServerBusy"
	case ResultServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// Retryable reports whether a request rejected with rc may succeed if
// sent again later.
func (rc ResultCode) Retryable() bool {
	switch rc {
	case ResultTooFrequent, ResultServerBusy, ResultServerError:
		return true
	default:
		return false
	}
}
