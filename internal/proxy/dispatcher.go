package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/indyzai/api-gateway/internal/circuitbreaker"
	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/registry"
	"github.com/indyzai/api-gateway/internal/retry"
)

// Header names set by the dispatcher.
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"

	contentTypeJSON = "application/json"
)

// Outcome labels for upstream result metrics.
const (
	outcomeSuccess     = "success"
	outcomeHTTPError   = "http_error"
	outcomeTimeout     = "timeout"
	outcomeUnreachable = "unreachable"
)

// maxResponseBytes bounds how much of an upstream body is buffered.
const maxResponseBytes = 10 << 20

// responseHeaders is the subset of upstream headers exposed on Response.
var responseHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"Location",
	HeaderRequestID,
}

// ServiceLookup resolves a service by name.
type ServiceLookup interface {
	Get(name string) (registry.ServiceConfig, error)
}

// Call describes one forwarded request.
type Call struct {
	// Service is the registry name of the target.
	Service string

	// Path is appended to the service base URL.
	Path string

	// Method defaults to GET.
	Method string

	// Query is appended to the URL when non-empty.
	Query url.Values

	// Body is JSON-encoded for POST, PUT and PATCH. []byte is sent as is.
	Body any

	// Headers are the caller's headers, overridden by service headers.
	Headers http.Header

	// RequestID is propagated as X-Request-ID.
	RequestID string

	// Transform rewrites Body before it is encoded.
	Transform func(body any) any

	// MaxAttempts overrides the service's retry budget when positive.
	MaxAttempts int
}

// Response is an upstream answer of any status.
type Response struct {
	Status  int
	Body    any
	Headers http.Header
}

// Successful reports whether Status is 2xx.
func (r *Response) Successful() bool {
	return r.Status >= 200 && r.Status < 300
}

// Message returns the "message" field of a JSON object body, if any.
func (r *Response) Message() string {
	if m, ok := r.Body.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}

// Dispatcher forwards calls to registered services.
type Dispatcher struct {
	services ServiceLookup
	client   *http.Client
	breakers *circuitbreaker.Set
	sleeper  retry.Sleeper
	unit     time.Duration
	tracer   *observability.Tracer
	logger   observability.Logger
	metrics  *observability.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithBreakers routes every attempt through per-service circuit breakers.
func WithBreakers(set *circuitbreaker.Set) Option {
	return func(d *Dispatcher) {
		d.breakers = set
	}
}

// WithSleeper replaces the real timer between attempts.
func WithSleeper(s retry.Sleeper) Option {
	return func(d *Dispatcher) {
		d.sleeper = s
	}
}

// WithBackoffUnit sets the backoff base unit.
func WithBackoffUnit(unit time.Duration) Option {
	return func(d *Dispatcher) {
		d.unit = unit
	}
}

// WithTracer sets the tracer for forward spans.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics records attempts and outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher resolving services through services.
func NewDispatcher(services ServiceLookup, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		services: services,
		client:   &http.Client{},
		sleeper:  retry.TimerSleeper{},
		unit:     retry.DefaultUnit,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Forward sends call to its service and returns the upstream response.
// The returned error is always a *DispatchError.
func (d *Dispatcher) Forward(ctx context.Context, call Call) (*Response, error) {
	svc, err := d.services.Get(call.Service)
	if err != nil {
		return nil, &DispatchError{Kind: KindServiceNotFound, Service: call.Service, Cause: err}
	}

	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := buildURL(svc.BaseURL, call.Path, call.Query)
	if err != nil {
		return nil, &DispatchError{Kind: KindUpstreamUnreachable, Service: svc.Name, Cause: err}
	}

	payload, err := encodeBody(method, call)
	if err != nil {
		return nil, &DispatchError{Kind: KindUpstreamUnreachable, Service: svc.Name, Cause: err}
	}

	// The upstream call outlives the client: values such as the trace span
	// are kept, cancellation is not.
	upstreamCtx := context.WithoutCancel(ctx)
	upstreamCtx, span := d.tracer.StartSpan(upstreamCtx, "proxy.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.service", svc.Name),
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLFull(target),
		),
	)
	defer span.End()

	attempts := svc.MaxRetries
	if call.MaxAttempts > 0 {
		attempts = call.MaxAttempts
	}
	attempts = max(attempts, 1)

	start := time.Now()
	made := 0
	var resp *Response

	err = retry.Do(upstreamCtx, retry.Config{Attempts: attempts, Unit: d.unit},
		func(ctx context.Context, attempt int) error {
			made = attempt
			d.metrics.RecordUpstreamAttempt(svc.Name)
			d.logger.WithContext(ctx).Debug("forwarding request",
				observability.String("service", svc.Name),
				observability.String("method", method),
				observability.String("url", target),
				observability.Int("attempt", attempt),
				observability.Int("max_attempts", attempts),
			)

			r, err := d.attempt(ctx, svc, method, target, payload, call)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		&retry.Options{
			ShouldRetry: retry.IsTransportError,
			Sleeper:     d.sleeper,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				d.logger.WithContext(upstreamCtx).Warn("upstream attempt failed, retrying",
					observability.String("service", svc.Name),
					observability.Int("attempt", attempt),
					observability.Int("max_attempts", attempts),
					observability.Duration("backoff", backoff),
					observability.Error(err),
				)
			},
		},
	)
	elapsed := time.Since(start)

	if err != nil {
		dispatchErr := classify(svc.Name, made, err)
		outcome := outcomeUnreachable
		if dispatchErr.Kind == KindUpstreamTimeout {
			outcome = outcomeTimeout
		}
		d.metrics.RecordUpstreamResult(svc.Name, outcome, elapsed)
		span.RecordError(dispatchErr)
		span.SetStatus(codes.Error, string(dispatchErr.Kind))
		d.logger.WithContext(upstreamCtx).Error("upstream request failed",
			observability.String("service", svc.Name),
			observability.String("kind", string(dispatchErr.Kind)),
			observability.Int("attempts", made),
			observability.Duration("elapsed", elapsed),
			observability.Error(err),
		)
		return nil, dispatchErr
	}

	outcome := outcomeSuccess
	if !resp.Successful() {
		outcome = outcomeHTTPError
	}
	d.metrics.RecordUpstreamResult(svc.Name, outcome, elapsed)
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.Status))
	d.logger.WithContext(upstreamCtx).Debug("upstream responded",
		observability.String("service", svc.Name),
		observability.Int("status", resp.Status),
		observability.Int("attempts", made),
		observability.Duration("elapsed", elapsed),
	)

	return resp, nil
}

// attempt makes a single bounded request. Only transport failures are
// returned as errors.
func (d *Dispatcher) attempt(
	ctx context.Context,
	svc registry.ServiceConfig,
	method, target string,
	payload []byte,
	call Call,
) (*Response, error) {
	if svc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.Timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header = d.layerHeaders(ctx, svc, call)

	result, err := d.breakers.Execute(svc.Name, func() (interface{}, error) {
		httpResp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = httpResp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}

		return &Response{
			Status:  httpResp.StatusCode,
			Body:    decodeBody(raw),
			Headers: normalizeHeaders(httpResp.Header),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// layerHeaders builds the outbound headers. Later layers win: default
// content type, caller headers, service headers, then correlation and
// trace headers.
func (d *Dispatcher) layerHeaders(ctx context.Context, svc registry.ServiceConfig, call Call) http.Header {
	h := make(http.Header, len(call.Headers)+len(svc.Headers)+3)
	h.Set(HeaderContentType, contentTypeJSON)

	for k, vs := range call.Headers {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	for k, v := range svc.Headers {
		h.Set(k, v)
	}
	if call.RequestID != "" {
		h.Set(HeaderRequestID, call.RequestID)
	}
	observability.InjectTraceHeaders(ctx, h)

	return h
}

func classify(service string, attempts int, err error) *DispatchError {
	kind := KindUpstreamUnreachable
	if retry.IsTimeout(err) {
		kind = KindUpstreamTimeout
	}
	if circuitbreaker.IsOpen(err) {
		kind = KindUpstreamUnreachable
	}
	return &DispatchError{Kind: kind, Service: service, Attempts: attempts, Cause: err}
}

func buildURL(baseURL, path string, query url.Values) (string, error) {
	if baseURL == "" {
		return "", errors.New("service has no base URL")
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("invalid upstream URL: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(method string, call Call) ([]byte, error) {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, nil
	}

	body := call.Body
	if call.Transform != nil {
		body = call.Transform(body)
	}
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return payload, nil
}

// decodeBody returns decoded JSON when raw is valid JSON, otherwise the
// raw text. An empty body decodes to nil.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func normalizeHeaders(h http.Header) http.Header {
	out := make(http.Header, len(responseHeaders))
	for _, name := range responseHeaders {
		if v := h.Values(name); len(v) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), v...)
		}
	}
	return out
}
