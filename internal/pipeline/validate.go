package pipeline

import (
	"github.com/indyzai/api-gateway/internal/validation"
)

// Validate checks the body, query and path parameters against schema and
// stores the typed result in Request.Input. Every failing field is
// reported at once.
func Validate(v *validation.Validator, schema validation.Schema) Stage {
	return StageFunc(func(req *Request) Outcome {
		result, err := v.Validate(schema, validation.Input{
			Body:   req.Body,
			Query:  firstValues(req.Query),
			Params: req.Params,
		})
		if err != nil {
			return Fail(err)
		}
		req.Input = result
		return Continue()
	})
}
