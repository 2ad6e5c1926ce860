// Package ghapi adapts the GitHub REST API (via google/go-github) to the
// generator.Repository interface.
//
// All list endpoints are fully paginated except the commit listing, which
// is walked lazily so that the generator can stop as soon as every pending
// release has been rendered. Errors are normalised to *model.APIError.
package ghapi
