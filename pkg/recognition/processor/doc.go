// Package processor provides the built-in pre- and post-processors of the
// recognition pipeline and a registry resolving them by identifier.
//
// Identifiers are case-insensitive, so "lowercase" and "Lowercase" name the
// same processor.
package processor
