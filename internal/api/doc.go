// Package api provides the HTTP REST API and WebSocket event feed for railrunner.
//
// It lets operator tooling manage the manual triggers of the loaded map,
// toggle automation of individual vehicles, inspect detected station
// platforms and read the audit trail. Every call into the engine is funnelled through the event
// loop, so handlers never touch engine state from an HTTP goroutine.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Authentication uses HS256 bearer tokens (see package auth). The WebSocket
// endpoint also accepts the token as an access_token query parameter.
package api
