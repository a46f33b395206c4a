// Package rail defines the value types shared by every Railrunner component:
// engine speed steps, track branch selection and the small amount of 3D
// geometry needed to place zones relative to track landmarks.
//
// Speed and branch names follow the host simulation's canonical spelling
// (Fwd_Hi, Rev_Lo, Left, ...). Parsing is case-insensitive and also accepts
// the long forms (ForwardHigh, ReverseLow) that operators tend to type.
package rail
