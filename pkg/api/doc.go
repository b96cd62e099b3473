// Package api defines the core domain types of the jot note service
// (users, notes, notebooks, tokens, reports), the structured API error
// taxonomy shared by all transports, and the alias rules for notes.
//
// The types here are storage-agnostic: stores persist them, services
// operate on them, and the transport layer serializes them. No package
// in this module depends on a web framework to use them.
package api
