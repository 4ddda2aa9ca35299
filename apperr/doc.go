// Package apperr defines the error taxonomy shared by every authcore component.
//
// # Kinds
//
// Every failure surfaced to callers is an [*Error] carrying one [Kind]:
// network, server, decoding, unauthorized, validation or unknown. Server
// errors keep the backend code and message verbatim so a presentation layer
// can render them without reformatting.
//
// # What this package must NOT do
//
//   - Localize or rewrite backend messages.
//   - Import any other authcore package.
package apperr
