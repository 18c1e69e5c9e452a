// Package auth carries the caller identity through request handling.
// Authentication itself happens at the gateway, which forwards the user id
// and email in trusted headers; Middleware turns them into an Identity.
package auth
