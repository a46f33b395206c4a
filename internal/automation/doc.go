// Package automation drives automated rail vehicles.
//
// Each automated vehicle has one Controller holding its station phase, its
// operator avatar and its pending timers. The Manager owns the controllers,
// keyed by vehicle id, and the persisted opt-in Membership.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                 Manager (manager.go)                   │
//	│  automate / deautomate / toggle, veto + granted hooks  │
//	│  ┌──────────────────┐    ┌─────────────────────────┐  │
//	│  │ Controller ×N    │    │ Membership              │  │
//	│  │ (controller.go)  │    │  └ MembershipRepository │  │
//	│  └──────────────────┘    └─────────────────────────┘  │
//	│        │                                              │
//	│        ▼                                              │
//	│  host.Vehicle / host.Avatar      Telemetry, WSHub     │
//	└───────────────────────────────────────────────────────┘
//
// # Station phases
//
//	BetweenStations ──arrive──▶ EnteringStation ──stop zone──▶ StoppedAtStation
//	      ▲                                                        │
//	      └──────entry leave────── LeavingStation ◀──dwell/forced──┘
//
// A brake applies Rev_Lo at once and the target speed after a fixed delay.
// Any later speed command supersedes a pending brake.
//
// # Thread Safety
//
// Manager and Controller are not safe for concurrent use. They are owned by
// the event loop; other goroutines reach them through scheduler.Loop.Do.
package automation
