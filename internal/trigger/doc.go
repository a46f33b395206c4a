// Package trigger manages operator-placed trigger zones on the track.
//
// A trigger is a small volume on the track centre line carrying an optional
// speed command, an optional branch command and an optional "starts
// automation" flag. Triggers are scoped to the current map.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│                Registry (registry.go)                 │
//	│  live zone per trigger, enter/leave handling, draw    │
//	│  ┌──────────────┐    ┌───────────────────────────┐   │
//	│  │    Store     │───▶│  Repository               │   │
//	│  │ (store.go)   │    │  SQLite or data file      │   │
//	│  └──────────────┘    └───────────────────────────┘   │
//	└──────────────────────────────────────────────────────┘
//
// Speed and branch names are resolved when a trigger is written, so an
// invalid name is rejected at the command that introduced it. Stored data
// that no longer parses is logged at load and the field is dropped.
//
// # Thread Safety
//
// Store and Registry are owned by the event loop and are not safe for
// concurrent use.
package trigger
