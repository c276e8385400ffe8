package microblog

import "fmt"

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("micro.blog: http %d", e.StatusCode)
	}
	return fmt.Sprintf("micro.blog: http %d: %s", e.StatusCode, e.Body)
}

// VerifyError carries the reason micro.blog gave for rejecting a sign-in token.
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string {
	return "verify token: " + e.Reason
}
