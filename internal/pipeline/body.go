package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/indyzai/api-gateway/internal/validation"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// DecodeBody reads at most maxBytes of the request body and decodes it as
// JSON into Request.Body. Bodies declared as non-JSON are left undecoded.
// The raw bytes stay readable for handlers.
func DecodeBody(maxBytes int64) Stage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	return StageFunc(func(req *Request) Outcome {
		r := req.c.Request
		if r.Body == nil || r.Body == http.NoBody {
			return Continue()
		}

		raw, err := io.ReadAll(http.MaxBytesReader(req.c.Writer, r.Body, maxBytes))
		_ = r.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return Fail(ErrPayloadTooLarge)
			}
			return Fail(fmt.Errorf("failed to read request body: %w", err))
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		if len(bytes.TrimSpace(raw)) == 0 || !isJSON(r.Header.Get("Content-Type")) {
			return Continue()
		}

		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			return Fail(fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		}
		req.Body = body
		return Continue()
	})
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "json")
}

// Sanitize strips script elements from the body, the query and the path
// parameters. A cleaned query replaces the request URL's raw query, so
// handlers reading either one see the same values.
func Sanitize() Stage {
	return StageFunc(func(req *Request) Outcome {
		if req.Body != nil {
			req.Body = validation.Sanitize(req.Body)
		}
		if sanitizeValues(req.Query) {
			req.c.Request.URL.RawQuery = req.Query.Encode()
		}
		for k, v := range req.Params {
			req.Params[k] = validation.SanitizeString(v)
		}
		return Continue()
	})
}

func sanitizeValues(values url.Values) bool {
	changed := false
	for _, vs := range values {
		for i, v := range vs {
			if clean := validation.SanitizeString(v); clean != v {
				vs[i] = clean
				changed = true
			}
		}
	}
	return changed
}
