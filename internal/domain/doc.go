// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (track.go, set.go, feed.go, observer.go, errors.go) hold the shared
// types and the consumer-side interfaces. No implementation code beyond value helpers and
// wire decoding - just contracts.
package domain
