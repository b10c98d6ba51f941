// Package webhook implements inbound webhook signature verification.
//
// Providers sign deliveries with HMAC-SHA256 over the canonical string
// "{timestamp}.{rawBody}" and transmit the result in a versioned,
// comma-separated header. Two header layouts are in the wild:
//
//	t=1712000000,v1=5257a869e7...   (timestamp embedded in the header)
//	v1,5257a869e7...                (timestamp in a separate header)
//
// ParseSignatureHeader accepts both layouts in any token order and
// rejects headers that do not carry the v1 version tag. Verify then
// recomputes the digest over the exact raw request bytes and compares
// in constant time, rejecting timestamps outside the freshness window
// to defeat replay of captured payloads.
//
// Verification must always run against the unmodified request body.
// Parsing the JSON first and re-serializing it produces different bytes
// and breaks the signature.
package webhook
