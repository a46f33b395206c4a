// Package engine is the explicit context object of a Railrunner instance.
//
// An Engine owns the trigger store and registry, the automation membership
// and manager, and the detected station platforms for one world. It is
// created at start-up, started once the world is ready, and stopped at
// shutdown. Host events and operator commands enter through its methods,
// which must all run on the scheduler's loop goroutine.
//
// Zone events carry a host.ZoneTag and are dispatched here by kind:
//
//	manual         enter → trigger registry    leave → trigger registry
//	station_entry  enter → platform arrival    leave → platform departure
//	station_stop   enter → platform stop       leave → ignored
package engine
