package pipeline

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/indyzai/api-gateway/internal/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

type rateLimitStage struct {
	limiter *ratelimit.Limiter
	class   string
	skip    bool
}

// RateLimit counts the request against class, keyed by identity when
// authenticated and by client address otherwise. For classes that skip
// successful requests, the count is refunded when the final status is
// below 400.
func RateLimit(limiter *ratelimit.Limiter, class string) Stage {
	s := &rateLimitStage{limiter: limiter, class: class}
	if c, ok := limiter.Class(class); ok {
		s.skip = c.SkipSuccessful
	}
	return s
}

// Handle implements Stage.
func (s *rateLimitStage) Handle(req *Request) Outcome {
	key := ratelimit.KeyFor(req.Identity, req.ClientAddress)

	result, err := s.limiter.Check(s.class, key)
	if err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) && exceeded.Result != nil {
			retry := exceeded.RetryAfter(time.Now())
			req.ResponseHeader().Set(HeaderRetryAfter, strconv.Itoa(ceilSeconds(retry.Seconds())))
		}
		return Fail(err)
	}

	h := req.ResponseHeader()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))

	req.limited = append(req.limited, limitedClass{class: s.class, key: key})
	return Continue()
}

// Finish implements Finisher.
func (s *rateLimitStage) Finish(req *Request, status int) {
	if !s.skip || status >= http.StatusBadRequest {
		return
	}
	for _, l := range req.limited {
		if l.class == s.class {
			s.limiter.Refund(l.class, l.key)
			return
		}
	}
}

func ceilSeconds(s float64) int {
	n := int(s)
	if float64(n) < s {
		n++
	}
	return n
}
