package service

import (
	"errors"
	"net/http"
	"strings"
)

type failureClass int

const (
	failureFatal failureClass = iota
	failureRateLimited
	failureServer
	failureNotFound
)

func (c failureClass) String() string {
	switch c {
	case failureRateLimited:
		return "rate_limited"
	case failureServer:
		return "server"
	case failureNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

var quotaMarkers = []string{"quota exceeded", "exceeded your current quota"}

// Remote adapters expose structured status through these.
type statusCoder interface {
	StatusCode() int
}

type rpcStatuser interface {
	RPCStatus() string
}

// classify maps a remote error to a failure class. HTTP status codes win, then
// RPC status names. Message matching is a fallback limited to RPC status tokens
// and quota wording; bare numbers such as "429" in free text are ignored.
func classify(err error) failureClass {
	if err == nil {
		return failureFatal
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if class, ok := classifyHTTPStatus(sc.StatusCode()); ok {
			return class
		}
	}

	var rs rpcStatuser
	if errors.As(err, &rs) {
		if class, ok := classifyRPCStatus(rs.RPCStatus()); ok {
			return class
		}
		return failureFatal
	}
	if sc != nil {
		return failureFatal
	}

	msg := err.Error()
	for _, token := range []string{"RESOURCE_EXHAUSTED", "UNAVAILABLE", "INTERNAL", "NOT_FOUND"} {
		if strings.Contains(msg, token) {
			class, _ := classifyRPCStatus(token)
			return class
		}
	}
	lower := strings.ToLower(msg)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return failureRateLimited
		}
	}
	return failureFatal
}

func classifyHTTPStatus(code int) (failureClass, bool) {
	switch code {
	case http.StatusTooManyRequests:
		return failureRateLimited, true
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return failureServer, true
	case http.StatusNotFound:
		return failureNotFound, true
	}
	return failureFatal, false
}

func classifyRPCStatus(status string) (failureClass, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "RESOURCE_EXHAUSTED":
		return failureRateLimited, true
	case "INTERNAL", "UNAVAILABLE":
		return failureServer, true
	case "NOT_FOUND":
		return failureNotFound, true
	}
	return failureFatal, false
}
