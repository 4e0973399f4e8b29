package config

import "fmt"

// Error is a configuration error. All variants are fatal at startup and
// map to HTTP 500 if one ever escapes into a request path.
type Error struct {
	msg string
}

func (e *Error) Error() string   { return e.msg }
func (e *Error) HTTPStatus() int { return 500 }

// MissingSite reports a %site reference to a site that was never declared.
func MissingSite(name string) *Error {
	return &Error{msg: fmt.Sprintf("missing site: %s", name)}
}

// InvalidRegex reports an uncompilable site or matcher pattern.
func InvalidRegex(pattern string, err error) *Error {
	return &Error{msg: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
}

// InvalidUserAgent reports a reference to an undeclared user agent.
func InvalidUserAgent(name string) *Error {
	return &Error{msg: fmt.Sprintf("invalid user agent: %s not found", name)}
}

// MissingExtractorField reports a required extractor option that is absent.
func MissingExtractorField(field string) *Error {
	return &Error{msg: fmt.Sprintf("missing extractor field: %s", field)}
}

// InvalidExtractorField reports an extractor option that failed to parse.
func InvalidExtractorField(field string) *Error {
	return &Error{msg: fmt.Sprintf("invalid extractor field: %s", field)}
}

// MissingCacheField reports a required cache backend option that is absent.
func MissingCacheField(field string) *Error {
	return &Error{msg: fmt.Sprintf("missing cache field: %s", field)}
}

// InvalidCacheField reports a cache backend option that failed to parse.
func InvalidCacheField(field string, err error) *Error {
	return &Error{msg: fmt.Sprintf("invalid cache field %s: %v", field, err)}
}
