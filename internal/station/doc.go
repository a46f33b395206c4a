// Package station detects the station platforms of the track network and
// coordinates the vehicles using them.
//
// Every recognised station landmark yields two mirrored platforms, one per
// track. A platform owns two zones:
//
//	entry zone  long box covering the platform; arrival and departure
//	stop zone   short box at the stopping point
//
// The coordination rule lives in Platform.OnArrive: an arriving vehicle
// starts braking and every other vehicle in the entry zone that is not
// already leaving is told to depart, so a bay never holds two stopped
// vehicles.
package station
