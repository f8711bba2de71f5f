// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing events with content parts, actions and
// streaming flags. These helpers are intentionally minimal and are not
// intended for production usage.
package testutil
