// Package http exposes the cohort assistant over HTTP.
//
// The router exposes the following endpoints:
//   - POST /events: one inbound chat message. Body: {"user_id","text"}. Response:
//     {"actions":[{"user_id","text","options"}]} with the messages to deliver back.
//   - POST /jobs/pairing/{activity}: runs a pairing round for "coffee" or
//     "interview" immediately and returns the round summary.
//   - POST /jobs/reminders: sends today's lecture reminders and returns the report.
//   - DELETE /sessions/{user_id}: discards a conversation session. Returns 204.
//   - GET /healthz: reports whether storage is reachable. Never requires a token.
//
// Every endpoint except /healthz requires the shared webhook token, either as
// `Authorization: Bearer <token>` or in the `X-Webhook-Token` header.
package http
