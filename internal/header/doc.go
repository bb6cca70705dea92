// Package header indexes raw response header bytes.
//
// The transport hands header lines over exactly as they arrive on the wire,
// status lines included. Parse turns that block into a name/value map the
// transfer engine consults for Content-Length and Content-Range when deciding
// whether a body was received completely.
package header
