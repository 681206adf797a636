package pipeline

import (
	"github.com/google/uuid"

	"github.com/indyzai/api-gateway/internal/observability"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns the correlation id: the caller's X-Request-ID when
// present, otherwise a new UUID. It is echoed on the response and attached
// to the request context for logging.
func RequestID() Stage {
	return StageFunc(func(req *Request) Outcome {
		id := req.Header().Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		req.CorrelationID = id
		req.ResponseHeader().Set(HeaderRequestID, id)
		req.SetContext(observability.ContextWithRequestID(req.Context(), id))
		return Continue()
	})
}
