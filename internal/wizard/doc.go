// Package wizard drives the three-step generation flow: pick insurance
// types, pick a tone and week, review and submit. A Wizard is a value; every
// transition and field writer returns a new Wizard and leaves the receiver
// untouched, so the TUI can hold one by value and tests can compare states
// before and after a transition.
//
// Field writers never validate. Guards run only when advancing and when the
// draft is turned into a request for submission.
package wizard
