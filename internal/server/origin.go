package server

import (
	"net/http"
	"strings"
)

type OriginChecker struct {
	allowed map[string]struct{}
	any     bool
}

// NewOriginChecker accepts every origin when allowedOrigins is empty or
// contains "*".
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	checker := &OriginChecker{
		allowed: make(map[string]struct{}, len(allowedOrigins)),
		any:     len(allowedOrigins) == 0,
	}

	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			checker.any = true
		}
		if origin != "" {
			checker.allowed[strings.ToLower(origin)] = struct{}{}
		}
	}

	return checker
}

// Check is used as websocket.Upgrader.CheckOrigin. Requests without an
// Origin header come from non-browser clients and are let through.
func (c *OriginChecker) Check(r *http.Request) bool {
	if c.any {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	_, ok := c.allowed[strings.ToLower(origin)]

	return ok
}
