// Package transform normalizes and encodes table columns.
//
// Normalize and Encode are pure Table -> Table functions that also return a
// description of what they did. Session wraps them with a working table and
// an append-only history of those descriptions.
package transform
