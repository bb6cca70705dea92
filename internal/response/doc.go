// Package response holds the outcome of a transfer: status code, raw header
// bytes, and the body (in memory or confirmation that it was written to a
// file).
//
// Validity is decided by sniffing the body for the "<title>404 " and
// "<title>403 " markers rather than by status code, so a transfer whose
// every attempt ended partially (status 0) can still be valid. StrictStatus
// adds status-code checks on top of the markers.
package response
