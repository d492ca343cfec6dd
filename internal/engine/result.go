package engine

// Status tags the outcome of a policy operation. Expected policy outcomes
// (denied, unauthenticated) are results, not faults; backend failures carry
// the underlying error but present a generic message.
type Status int

const (
	StatusOK Status = iota
	StatusDenied
	StatusUnauthenticated
	StatusBackendError
)

type Result struct {
	Status  Status
	Message string
	Err     error
}

func (r Result) Success() bool {
	return r.Status == StatusOK
}

func ok(message string) Result {
	return Result{Status: StatusOK, Message: message}
}

func denied(message string) Result {
	return Result{Status: StatusDenied, Message: message}
}

func unauthenticated() Result {
	return Result{Status: StatusUnauthenticated, Message: msgMustLogIn}
}

func backendError(err error) Result {
	return Result{Status: StatusBackendError, Message: msgBackendError, Err: err}
}
