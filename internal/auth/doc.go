// Package auth provides authorisation for the Railrunner command surface.
//
// Tokens are HS256 JWTs issued by an operator tool (or by IssueToken in
// tests and scripts) and carry a subject and a role. Roles map statically to
// permissions:
//   - viewer: read triggers, vehicles and stations
//   - operator: viewer plus toggling automation and managing triggers
//   - admin: everything, including system administration
//
// Host command callers (see internal/bridge) present permission names
// directly; Granted checks both forms against the same constants.
package auth
