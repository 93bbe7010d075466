// Package sanitizer normalizes free-text and list input before validation and
// storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized becomes an empty string, and slice helpers drop empty results
// and duplicates.
package sanitizer
