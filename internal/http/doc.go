// Package http provides HTTP handlers and middleware for the scheduler API.
//
// The router exposes the following endpoints:
//   - GET /healthz: reports whether the store answers a ping.
//   - POST /sessions (alias POST /users/login): exchanges credentials for a bearer
//     token. Body: {"identifier","password"} as JSON, or an OAuth2 password form
//     with username and password. Response: {"access_token","token_type","expires_at"}.
//     The token is also surfaced via the `X-Session-Token` header and a
//     `session_token` cookie.
//   - POST /users/register: self registration. Body: {"name","email","mobile","password"}
//     with an optional "token" that activates an invited account instead.
//   - POST /users/register-from-invite: registration that requires a token.
//   - GET /users/me, GET /users: the caller's profile and every other user.
//   - POST /users/invite (alias POST /users/invite-user): Body {"email","role"}.
//   - PUT /users/{id}/permissions: Body {"role"}.
//   - GET /events?status=, POST /events, PUT /events/{id}, POST /events/{id}/cancel:
//     event management exchanging the `eventDTO` payload defined in event_handler.go.
//     Overlapping bookings answer 409 with a message naming the busy party.
//
// Every route except health, login and registration requires a session.
// Errors are returned as {"error_code","message","errors"}.
package http
