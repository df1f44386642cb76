package resolver

import "fmt"

// Kind says what sort of problem a resolver had, which determines the GraphQL error code
type Kind int

const (
	InvalidInput Kind = iota + 1
	AuthenticationRequired
	NotFound
)

// Code is the value of the "code" extension of the GraphQL error
func (k Kind) Code() string {
	switch k {
	case InvalidInput:
		return "BAD_USER_INPUT"
	case AuthenticationRequired:
		return "UNAUTHENTICATED"
	case NotFound:
		return "NOT_FOUND"
	}
	return "INTERNAL_SERVER_ERROR"
}

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case AuthenticationRequired:
		return "authentication required"
	case NotFound:
		return "not found"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by resolvers.  The handler adds its Extensions to the GraphQL error.
type Error struct {
	Kind        Kind
	Message     string
	InvalidArgs map[string]interface{} // arguments of the failed operation (if relevant)
	Err         error                  // underlying cause (if any)
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Extensions() map[string]interface{} {
	r := map[string]interface{}{"code": e.Kind.Code()}
	if e.InvalidArgs != nil {
		r["invalidArgs"] = e.InvalidArgs
	}
	return r
}

func errNotAuthenticated() *Error {
	return &Error{Kind: AuthenticationRequired, Message: "Not authenticated"}
}

func errInput(message string, err error, args map[string]interface{}) *Error {
	return &Error{Kind: InvalidInput, Message: message, InvalidArgs: args, Err: err}
}
