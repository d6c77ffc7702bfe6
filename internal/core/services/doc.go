// Package services implements the driving port interfaces.
// Services contain the core business logic of the digest pipeline and
// orchestrate calls to driven ports (adapters).
//
// Services are pure Go with no CGO. Beyond the standard library they only
// use golang.org/x/sync, golang.org/x/time and goquery for text cleanup.
package services
