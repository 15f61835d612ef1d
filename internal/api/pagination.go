package api

import "net/http"

// forwardedHeaders are copied from an upstream list response to the caller.
var forwardedHeaders = []string{
	"Link",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
}

func forwardPagination(dst http.Header, src http.Header) {
	if src == nil {
		return
	}
	for _, name := range forwardedHeaders {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}
