package service

import "fmt"

// CredentialError means the tenant has no usable upstream credential.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string { return "connection invalid" }
func (e *CredentialError) Unwrap() error { return e.Err }

// RateLimitError means the upstream answered 429.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s", e.Endpoint)
}

// UpstreamError is any other non-success upstream status. Message is the
// upstream text, kept verbatim.
type UpstreamError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API error: %d %s", e.Status, e.Message)
}
