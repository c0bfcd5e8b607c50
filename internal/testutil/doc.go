// Package testutil contains helper builders and canned actions used across
// tests and examples to reduce boilerplate when constructing task packages
// and action registries. They are not intended for production usage.
package testutil
