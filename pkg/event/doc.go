// Package event normalizes provider-specific webhook payloads into a
// closed set of domain events.
//
// The identity provider and the billing provider ship differently shaped
// JSON; normalization happens once at the boundary so the reconciliation
// logic only ever sees the tagged union defined here. Event types the
// normalizers do not recognize map to Ignored rather than an error:
// providers add event types over time and an unrecognized delivery must
// be acknowledged, not failed.
package event
