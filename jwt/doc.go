// Package jwt mints and verifies the signed bearer tokens handed out at login.
// A token names its user and the server-side session record; revocation is
// done by deleting that record, not by the token itself.
package jwt
