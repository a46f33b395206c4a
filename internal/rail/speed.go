package rail

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSpeed is returned when a speed name cannot be parsed.
var ErrUnknownSpeed = errors.New("rail: unknown engine speed")

// ErrUnknownTrackSelection is returned when a branch name cannot be parsed.
var ErrUnknownTrackSelection = errors.New("rail: unknown track selection")

// EngineSpeed is a throttle step. Values are ordered and symmetric around Zero.
type EngineSpeed int

const (
	RevHi  EngineSpeed = -3
	RevMed EngineSpeed = -2
	RevLo  EngineSpeed = -1
	Zero   EngineSpeed = 0
	FwdLo  EngineSpeed = 1
	FwdMed EngineSpeed = 2
	FwdHi  EngineSpeed = 3
)

// Direction is the travel direction implied by a non-zero speed.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

var speedNames = map[EngineSpeed]string{
	RevHi:  "Rev_Hi",
	RevMed: "Rev_Med",
	RevLo:  "Rev_Lo",
	Zero:   "Zero",
	FwdLo:  "Fwd_Lo",
	FwdMed: "Fwd_Med",
	FwdHi:  "Fwd_Hi",
}

// speedAliases maps lowercased spellings to speeds.
var speedAliases = map[string]EngineSpeed{
	"rev_hi": RevHi, "reversehigh": RevHi,
	"rev_med": RevMed, "reversemedium": RevMed,
	"rev_lo": RevLo, "reverselow": RevLo,
	"zero": Zero, "stop": Zero,
	"fwd_lo": FwdLo, "forwardlow": FwdLo,
	"fwd_med": FwdMed, "forwardmedium": FwdMed,
	"fwd_hi": FwdHi, "forwardhigh": FwdHi,
}

// AllSpeeds returns every speed from RevHi to FwdHi.
func AllSpeeds() []EngineSpeed {
	return []EngineSpeed{RevHi, RevMed, RevLo, Zero, FwdLo, FwdMed, FwdHi}
}

// ParseEngineSpeed resolves a speed name.
func ParseEngineSpeed(name string) (EngineSpeed, error) {
	s, ok := speedAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Zero, fmt.Errorf("%w: %q", ErrUnknownSpeed, name)
	}
	return s, nil
}

// String returns the canonical host name of the speed.
func (s EngineSpeed) String() string {
	if name, ok := speedNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EngineSpeed(%d)", int(s))
}

// Valid reports whether s is one of the seven defined steps.
func (s EngineSpeed) Valid() bool {
	_, ok := speedNames[s]
	return ok
}

// Direction returns forward or reverse, or DirectionNone for Zero.
func (s EngineSpeed) Direction() Direction {
	switch {
	case s > Zero:
		return DirectionForward
	case s < Zero:
		return DirectionReverse
	default:
		return DirectionNone
	}
}

// Magnitude is 1 (low) to 3 (high), 0 for Zero. Used for display colouring.
func (s EngineSpeed) Magnitude() int {
	if s < 0 {
		return int(-s)
	}
	return int(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s EngineSpeed) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSpeed, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EngineSpeed) UnmarshalText(text []byte) error {
	parsed, err := ParseEngineSpeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TrackSelection chooses the branch taken at the next switch.
type TrackSelection int

const (
	TrackDefault TrackSelection = iota
	TrackLeft
	TrackRight
)

var trackNames = map[TrackSelection]string{
	TrackDefault: "Default",
	TrackLeft:    "Left",
	TrackRight:   "Right",
}

// ParseTrackSelection resolves a branch name.
func ParseTrackSelection(name string) (TrackSelection, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for t, n := range trackNames {
		if strings.ToLower(n) == key {
			return t, nil
		}
	}
	return TrackDefault, fmt.Errorf("%w: %q", ErrUnknownTrackSelection, name)
}

// String returns the canonical host name of the branch.
func (t TrackSelection) String() string {
	if name, ok := trackNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TrackSelection(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TrackSelection) MarshalText() ([]byte, error) {
	if _, ok := trackNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTrackSelection, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TrackSelection) UnmarshalText(text []byte) error {
	parsed, err := ParseTrackSelection(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Command is an optional speed change plus an optional branch change, as
// carried by a manual trigger zone. Nil fields mean "no change".
type Command struct {
	Speed *EngineSpeed
	Track *TrackSelection
}

// Empty reports whether the command changes nothing.
func (c Command) Empty() bool {
	return c.Speed == nil && c.Track == nil
}
