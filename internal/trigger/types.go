package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/railrunner/internal/rail"
)

// Trigger is a manual trigger with its speed and branch already resolved.
type Trigger struct {
	ID               int                  `json:"id"`
	Position         rail.Vector3         `json:"position"`
	StartsAutomation bool                 `json:"starts_automation"`
	Speed            *rail.EngineSpeed    `json:"speed,omitempty"`
	TrackSelection   *rail.TrackSelection `json:"track_selection,omitempty"`
}

// Clone returns a copy that shares no pointers with t.
func (t *Trigger) Clone() *Trigger {
	if t == nil {
		return nil
	}
	c := *t
	if t.Speed != nil {
		s := *t.Speed
		c.Speed = &s
	}
	if t.TrackSelection != nil {
		ts := *t.TrackSelection
		c.TrackSelection = &ts
	}
	return &c
}

// Command returns the speed and branch change the trigger applies.
func (t *Trigger) Command() rail.Command {
	return rail.Command{Speed: t.Speed, Track: t.TrackSelection}
}

// Label is the text drawn above the trigger when triggers are shown.
func (t *Trigger) Label() string {
	parts := []string{fmt.Sprintf("#%d", t.ID)}
	if t.StartsAutomation {
		parts = append(parts, "start")
	}
	if t.Speed != nil {
		parts = append(parts, t.Speed.String())
	}
	if t.TrackSelection != nil {
		parts = append(parts, t.TrackSelection.String())
	}
	return strings.Join(parts, " ")
}

// Colour picks the draw colour from the speed: red for stop, green shades
// forward, blue shades reverse, grey when the trigger has no speed.
func (t *Trigger) Colour() string {
	if t.Speed == nil {
		return "#a0a0a0"
	}
	shades := [...]string{"", "60", "a0", "ff"}
	switch t.Speed.Direction() {
	case rail.DirectionForward:
		return "#00" + shades[t.Speed.Magnitude()] + "00"
	case rail.DirectionReverse:
		return "#0000" + shades[t.Speed.Magnitude()]
	default:
		return "#ff0000"
	}
}

// Record is the persisted form of a trigger. Speed and branch are kept as
// names so stored data stays readable.
type Record struct {
	ID               int          `json:"id"`
	Position         rail.Vector3 `json:"position"`
	StartsAutomation bool         `json:"starts_automation,omitempty"`
	Speed            string       `json:"speed,omitempty"`
	TrackSelection   string       `json:"track_selection,omitempty"`
}

// Record converts the trigger to its persisted form.
func (t *Trigger) Record() Record {
	r := Record{ID: t.ID, Position: t.Position, StartsAutomation: t.StartsAutomation}
	if t.Speed != nil {
		r.Speed = t.Speed.String()
	}
	if t.TrackSelection != nil {
		r.TrackSelection = t.TrackSelection.String()
	}
	return r
}

// fromRecord resolves a stored record. Names that no longer parse are
// reported through warn and the field is left unset.
func fromRecord(r Record, warn func(field, value string, err error)) *Trigger {
	t := &Trigger{ID: r.ID, Position: r.Position, StartsAutomation: r.StartsAutomation}
	if r.Speed != "" {
		speed, err := rail.ParseEngineSpeed(r.Speed)
		if err != nil {
			warn("speed", r.Speed, err)
		} else {
			t.Speed = &speed
		}
	}
	if r.TrackSelection != "" {
		track, err := rail.ParseTrackSelection(r.TrackSelection)
		if err != nil {
			warn("track_selection", r.TrackSelection, err)
		} else {
			t.TrackSelection = &track
		}
	}
	return t
}

// Options are the operator-settable fields of a trigger. Update replaces
// all three with the supplied set.
type Options struct {
	StartsAutomation bool                 `json:"starts_automation"`
	Speed            *rail.EngineSpeed    `json:"speed,omitempty"`
	TrackSelection   *rail.TrackSelection `json:"track_selection,omitempty"`
}

// ParseOptions reads command arguments. Each argument is "start", a speed
// name or a branch name, matched case-insensitively.
func ParseOptions(args []string) (Options, error) {
	var opts Options
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.EqualFold(arg, "start") {
			opts.StartsAutomation = true
			continue
		}
		if speed, err := rail.ParseEngineSpeed(arg); err == nil {
			opts.Speed = &speed
			continue
		}
		if track, err := rail.ParseTrackSelection(arg); err == nil {
			opts.TrackSelection = &track
			continue
		}
		return Options{}, fmt.Errorf("%w: %q", ErrInvalidOption, arg)
	}
	return opts, nil
}

// IsInvalidOption reports whether err came from rejecting a command argument.
func IsInvalidOption(err error) bool {
	return errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, rail.ErrUnknownSpeed) ||
		errors.Is(err, rail.ErrUnknownTrackSelection)
}

func (o Options) apply(t *Trigger) {
	t.StartsAutomation = o.StartsAutomation
	t.Speed = nil
	t.TrackSelection = nil
	if o.Speed != nil {
		s := *o.Speed
		t.Speed = &s
	}
	if o.TrackSelection != nil {
		ts := *o.TrackSelection
		t.TrackSelection = &ts
	}
}
