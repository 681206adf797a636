package pipeline

import (
	"net/http"
	"time"

	"github.com/indyzai/api-gateway/internal/observability"
)

type loggingStage struct {
	logger  observability.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

const startKey = "pipeline.start"

// Logging logs one line per completed request and records request metrics.
// 5xx responses are logged at error level, 4xx at warn.
func (p *Pipeline) Logging() Stage {
	return &loggingStage{logger: p.logger, metrics: p.metrics, clock: time.Now}
}

// Handle implements Stage.
func (s *loggingStage) Handle(req *Request) Outcome {
	req.c.Set(startKey, s.clock())
	return Continue()
}

// Finish implements Finisher.
func (s *loggingStage) Finish(req *Request, status int) {
	var latency time.Duration
	if v, ok := req.c.Get(startKey); ok {
		if start, ok := v.(time.Time); ok {
			latency = s.clock().Sub(start)
		}
	}

	route := req.c.FullPath()
	s.metrics.RecordRequest(req.Method, route, status, latency)

	fields := []observability.Field{
		observability.String("method", req.Method),
		observability.String("path", req.Path),
		observability.Int("status", status),
		observability.Duration("latency", latency),
		observability.String("client_ip", req.ClientAddress),
		observability.String("user_agent", req.Header().Get("User-Agent")),
		observability.String("request_id", req.CorrelationID),
	}
	if req.Identity != nil {
		fields = append(fields, observability.String("user_id", req.Identity.ID))
	}

	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("request completed", fields...)
	case status >= http.StatusBadRequest:
		s.logger.Warn("request completed", fields...)
	default:
		s.logger.Info("request completed", fields...)
	}
}
