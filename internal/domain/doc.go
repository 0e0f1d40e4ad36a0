// Package domain defines the error model, the failure classifier and the
// message catalog shared by the relay service.
//
// Every failure surfaced to a client is an *Error with a Kind (which decides
// the HTTP status), a Code (machine readable) and a MessageKey rendered in
// the caller's locale by a Localizer. Tool diagnostics stay in Err and are
// only ever logged.
package domain
