// Package httpapi serves the sxpauth engine as a JSON API over chi.
//
// Errors are returned as {"error": "..."} with the engine's public message;
// backend details are logged, never returned.
package httpapi
