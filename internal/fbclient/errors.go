package fbclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrCredentials is returned before any request when the page id or token
// is obviously unusable.
var ErrCredentials = errors.New("invalid facebook credentials")

// APIError is an error answer from the Graph API.
type APIError struct {
	Status      int
	Code        int
	Type        string
	Message     string
	Explanation string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facebook error %d: %s", e.Code, e.Explanation)
}

// NetworkKind separates requests that never got an answer.
type NetworkKind string

const (
	KindTimeout    NetworkKind = "timeout"
	KindConnection NetworkKind = "connection"
)

// NetworkError wraps a transport failure.
type NetworkError struct {
	Kind NetworkKind
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Kind == KindTimeout {
		return "facebook request timed out: " + e.Err.Error()
	}
	return "could not reach facebook: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Code is the HTTP-style status reported for the failure.
func (e *NetworkError) Code() int {
	if e.Kind == KindTimeout {
		return 504
	}
	return 503
}

func classifyNetwork(err error) *NetworkError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &NetworkError{Kind: KindTimeout, Err: err}
	}
	return &NetworkError{Kind: KindConnection, Err: err}
}

var explanations = map[int]string{
	190: "Invalid/expired token. Get a new token from Meta Developer Dashboard.",
	193: "Invalid token for this page. Verify Page ID matches token.",
	102: "Session invalidated. Your permissions may have been revoked.",
	283: "Token has insufficient permissions. Grant publish_pages permission.",
	200: "Insufficient permissions. Token needs: pages_read_engagement, publish_pages.",
	10:  "User does not have permission to post on this page.",
	100: "Invalid Page ID. Check the numeric ID format (no dashes).",
	33:  "This Page doesn't exist or is private.",
	17:  "Too many requests. Facebook is rate-limiting. Wait a few minutes.",
	4:   "Too many requests from your IP. Try again after waiting.",
	368: "The action blocked you. Check if page/token is still active.",
	506: "Action requires review. Try again later.",
}

// Explain maps a Graph error to a user-facing explanation.
func Explain(code int, message, typ string) string {
	if s, ok := explanations[code]; ok {
		return s
	}
	switch typ {
	case "OAuthException":
		return "Authorization failed: " + message
	case "GraphMethodException":
		return "Invalid API request: " + message
	}
	return fmt.Sprintf("Facebook error (%d): %s", code, message)
}

// Describe returns the status code and message an API caller should see
// for err.
func Describe(err error) (int, string) {
	var apiErr *APIError
	var netErr *NetworkError
	switch {
	case err == nil:
		return 200, ""
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Explanation
	case errors.As(err, &netErr):
		if netErr.Kind == KindTimeout {
			return netErr.Code(), "Request timed out. Facebook servers may be slow or unreachable."
		}
		return netErr.Code(), "Connection failed. Please check internet and firewall."
	case errors.Is(err, ErrCredentials):
		return 400, err.Error()
	}
	return 500, err.Error()
}
