// Package inject writes caller-supplied generation parameters into the
// right nodes of a workflow document.
//
// Nodes are located by class type, with a declared title disambiguating
// duplicates that share a type (a "Positive Prompt" and a "Negative
// Prompt" text encoder, for example). Injection always operates on a deep
// copy; the caller's document is never mutated. A recognized node whose
// configuration slots do not match the expected arity is left untouched
// and reported as a warning, and a parameter with no matching node in the
// graph is reported as a gap — whether either is fatal is the caller's
// policy, not this package's.
package inject
