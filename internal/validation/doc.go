// Package validation checks request shapes against declarative schemas and
// strips script tags from untrusted input.
//
// A Schema names a struct type per request location (body, query, path
// parameters). Validate decodes each location into a fresh value of that
// type, applies defaults, runs go-playground/validator tags, and reports
// every failing field at once, grouped by location.
package validation
