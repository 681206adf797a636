package pipeline

import (
	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/response"
)

// Stage is one step of the request pipeline.
type Stage interface {
	Handle(req *Request) Outcome
}

// StageFunc adapts a function into a Stage.
type StageFunc func(req *Request) Outcome

// Handle implements Stage.
func (f StageFunc) Handle(req *Request) Outcome {
	return f(req)
}

// Finisher is implemented by stages that need the final response status.
// Finish runs after every downstream stage and handler has completed, in
// reverse order of registration.
type Finisher interface {
	Finish(req *Request, status int)
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeRespond
	outcomeFail
)

// Outcome is the result of a stage.
type Outcome struct {
	kind     outcomeKind
	status   int
	envelope *response.Envelope
	err      error
}

// Continue passes the request to the next stage.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Respond stops the pipeline and writes env with status. A nil envelope
// writes the status with an empty body.
func Respond(status int, env *response.Envelope) Outcome {
	return Outcome{kind: outcomeRespond, status: status, envelope: env}
}

// Fail stops the pipeline and renders err through the ErrorHandler.
func Fail(err error) Outcome {
	return Outcome{kind: outcomeFail, err: err}
}

// Pipeline adapts stages into gin handlers and owns the terminal error
// handling.
type Pipeline struct {
	logger  observability.Logger
	metrics *observability.Metrics
	errors  *ErrorHandler
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithProduction hides diagnostic stacks from error responses.
func WithProduction(production bool) Option {
	return func(p *Pipeline) {
		p.errors.production = production
	}
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: observability.NopLogger(),
		errors: &ErrorHandler{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.errors.logger = p.logger
	return p
}

// Logger returns the pipeline logger.
func (p *Pipeline) Logger() observability.Logger {
	return p.logger
}

// Handler runs stages in order, then the rest of the gin chain.
func (p *Pipeline) Handler(stages ...Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := RequestFrom(c)
		finishers := make([]Finisher, 0, len(stages))

		for _, stage := range stages {
			out := stage.Handle(req)

			switch out.kind {
			case outcomeRespond:
				p.respond(c, out)
				finish(req, c, finishers)
				return
			case outcomeFail:
				p.Abort(c, out.err)
				finish(req, c, finishers)
				return
			}

			if f, ok := stage.(Finisher); ok {
				finishers = append(finishers, f)
			}
		}

		c.Next()
		finish(req, c, finishers)
	}
}

// Abort renders err as the response of c and stops the gin chain.
func (p *Pipeline) Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	p.errors.Render(c, RequestFrom(c), err)
}

// Reply writes a successful envelope.
func (p *Pipeline) Reply(c *gin.Context, status int, message string, data any) {
	req := RequestFrom(c)
	c.JSON(status, response.Success(message, data, req.CorrelationID))
}

func (p *Pipeline) respond(c *gin.Context, out Outcome) {
	if out.envelope == nil {
		c.AbortWithStatus(out.status)
		return
	}
	c.AbortWithStatusJSON(out.status, out.envelope)
}

func finish(req *Request, c *gin.Context, finishers []Finisher) {
	status := c.Writer.Status()
	for i := len(finishers) - 1; i >= 0; i-- {
		finishers[i].Finish(req, status)
	}
}
