// Package httpapi exposes imports, connection status, consent and
// disconnect as a JSON API on a chi router.
package httpapi
