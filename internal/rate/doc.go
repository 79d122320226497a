// Package rate provides Redis-backed fixed-window rate limiting for the
// login and refresh endpoints.
//
// Counters use INCR plus a conditional EXPIRE on the first hit of the
// window. Key prefixes:
//   - al:  — login attempts per identifier
//   - ali: — login attempts per IP
//   - ar:  — refresh attempts per user
package rate
