package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Defaulter is implemented by schema types that fill unset fields.
type Defaulter interface {
	ApplyDefaults()
}

// Messenger is implemented by schema types with custom failure messages,
// keyed "<field>.<tag>" where field is the JSON name.
type Messenger interface {
	Messages() map[string]string
}

// Schema names the struct type expected in each request location. A nil
// factory skips that location.
type Schema struct {
	Name   string
	Body   func() any
	Query  func() any
	Params func() any
}

// Input is the raw, already sanitized request data.
type Input struct {
	Body   any
	Query  map[string]string
	Params map[string]string
}

// Result holds the decoded, defaulted values that passed validation.
type Result struct {
	Body   any
	Query  any
	Params any
}

// Validator validates inputs against schemas.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the gateway's custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(jsonName)

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("mixedcase", validateMixedCase)

	return &Validator{validate: v}
}

// validateMixedCase requires at least one lowercase letter, one uppercase
// letter and one digit.
func validateMixedCase(fl validator.FieldLevel) bool {
	var lower, upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// Validate checks in against schema. On failure the error is an *Error
// listing every invalid field.
func (v *Validator) Validate(schema Schema, in Input) (*Result, error) {
	result := &Result{}
	verr := &Error{}

	if schema.Body != nil {
		result.Body = v.check(verr, LocationBody, schema.Body, in.Body)
	}
	if schema.Query != nil {
		result.Query = v.check(verr, LocationQuery, schema.Query, stringMap(in.Query))
	}
	if schema.Params != nil {
		result.Params = v.check(verr, LocationParams, schema.Params, stringMap(in.Params))
	}

	if !verr.empty() {
		return nil, verr
	}
	return result, nil
}

// Struct validates an already decoded value, e.g. one built in code.
func (v *Validator) Struct(loc Location, value any) error {
	verr := &Error{}
	verr.add(loc, v.fieldErrors(value)...)
	if verr.empty() {
		return nil
	}
	return verr
}

func (v *Validator) check(verr *Error, loc Location, factory func() any, raw any) any {
	target := factory()

	decodeErrs, mistyped := decodeInto(target, raw)
	if len(decodeErrs) > 0 && decodeErrs[0].Field == "" {
		// The value is not an object at all.
		verr.add(loc, decodeErrs...)
		return nil
	}
	if d, ok := target.(Defaulter); ok {
		d.ApplyDefaults()
	}

	// A mistyped field was left at its zero value, so its rule failures
	// would only restate the type error.
	fields := decodeErrs
	for _, fe := range v.fieldErrors(target) {
		top, _, _ := strings.Cut(fe.Field, ".")
		if !mistyped[top] {
			fields = append(fields, fe)
		}
	}
	if len(fields) > 0 {
		verr.add(loc, fields...)
		return nil
	}
	return target
}

func (v *Validator) fieldErrors(target any) []FieldError {
	err := v.validate.Struct(target)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return []FieldError{{Field: "", Message: invalid.Error()}}
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	var custom map[string]string
	if m, ok := target.(Messenger); ok {
		custom = m.Messages()
	}

	out := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		field := fieldPath(fe)
		msg, ok := custom[field+"."+fe.Tag()]
		if !ok {
			msg = defaultMessage(field, fe)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	return out
}

// fieldPath returns the dotted JSON path of fe without the struct name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func defaultMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf(`"%s" is required`, field)
	case "email":
		return fmt.Sprintf(`"%s" must be a valid email`, field)
	case "url", "uri":
		return fmt.Sprintf(`"%s" must be a valid uri`, field)
	case "uuid", "uuid4":
		return fmt.Sprintf(`"%s" must be a valid GUID`, field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf(`"%s" length must be at least %s characters long`, field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf(`"%s" must contain at least %s items`, field, fe.Param())
		}
		return fmt.Sprintf(`"%s" must be greater than or equal to %s`, field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf(`"%s" length must be less than or equal to %s characters long`, field, fe.Param())
		}
		return fmt.Sprintf(`"%s" must be less than or equal to %s`, field, fe.Param())
	case "oneof":
		return fmt.Sprintf(`"%s" must be one of [%s]`, field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf(`"%s" failed on the '%s' rule`, field, fe.Tag())
	}
}

// decodeInto copies raw into the struct target points to, one JSON field at
// a time, so every type mismatch is reported rather than only the first.
// It also returns the JSON names of the fields that failed to decode.
func decodeInto(target, raw any) ([]FieldError, map[string]bool) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return []FieldError{{Field: "", Message: "invalid input"}}, nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return []FieldError{{Field: "", Message: `"value" must be of type object`}}, nil
	}

	elem := reflect.ValueOf(target).Elem()
	var (
		errs     []FieldError
		mistyped map[string]bool
	)
	for i := 0; i < elem.NumField(); i++ {
		sf := elem.Type().Field(i)
		name := jsonName(sf)
		if name == "" || !sf.IsExported() {
			continue
		}
		member, ok := members[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(member, elem.Field(i).Addr().Interface()); err != nil {
			elem.Field(i).SetZero()
			if mistyped == nil {
				mistyped = make(map[string]bool)
			}
			mistyped[name] = true
			errs = append(errs, FieldError{
				Field:   name,
				Message: fmt.Sprintf(`"%s" must be a %s`, name, jsonTypeName(sf.Type)),
			})
		}
	}
	return errs, mistyped
}

// jsonName returns the key a struct field is decoded from, or "" when the
// field is skipped.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Pointer:
		return jsonTypeName(t.Elem())
	default:
		return "object"
	}
}

func stringMap(m map[string]string) any {
	if m == nil {
		return map[string]string{}
	}
	return m
}
