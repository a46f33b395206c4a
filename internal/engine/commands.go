package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/auth"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// Command names accepted by Execute.
const (
	CmdToggle = "toggle"
	CmdAdd    = "add"
	CmdUpdate = "update"
	CmdMove   = "move"
	CmdRemove = "remove"
	CmdShow   = "show"
)

// Command is an operator command relayed by the host. The host resolves
// what the caller is aiming at before sending it.
type Command struct {
	Caller      string   `json:"caller"`
	Permissions []string `json:"permissions"`
	Name        string   `json:"name"`
	Args        []string `json:"args"`

	// Aim is the track position under the caller's crosshair, if any.
	Aim *rail.Vector3 `json:"aim,omitempty"`
	// Vehicle is the vehicle the caller is riding or looking at, if any.
	Vehicle host.EntityID `json:"vehicle,omitempty"`
}

// Reply is the result of a command: a message key the host localises,
// with its parameters.
type Reply struct {
	Key    string         `json:"key"`
	Params map[string]any `json:"params,omitempty"`
}

// OK reports whether the reply is a success message.
func (r Reply) OK() bool {
	return !strings.HasPrefix(r.Key, "error.")
}

func reply(key string, kv ...any) Reply {
	r := Reply{Key: key}
	if len(kv) > 0 {
		r.Params = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			r.Params[kv[i].(string)] = kv[i+1]
		}
	}
	return r
}

var commandPermissions = map[string]auth.Permission{
	CmdToggle: auth.PermAutomationToggle,
	CmdAdd:    auth.PermTriggerManage,
	CmdUpdate: auth.PermTriggerManage,
	CmdMove:   auth.PermTriggerManage,
	CmdRemove: auth.PermTriggerManage,
	CmdShow:   auth.PermTriggerManage,
}

// Execute runs cmd and returns the message for the caller. Every check
// happens before anything is mutated.
func (e *Engine) Execute(ctx context.Context, cmd Command) Reply {
	perm, known := commandPermissions[cmd.Name]
	if !known {
		return reply("error.unknown_command", "name", cmd.Name)
	}
	if !auth.Granted(cmd.Permissions, perm) {
		e.logger.Warn("command refused", "caller", cmd.Caller, "command", cmd.Name, "permission", string(perm))
		return reply("error.no_permission")
	}
	if !e.running {
		return reply("error.not_ready")
	}

	var r Reply
	switch cmd.Name {
	case CmdToggle:
		r = e.execToggle(ctx, cmd)
	case CmdAdd:
		r = e.execAdd(ctx, cmd)
	case CmdUpdate:
		r = e.execUpdate(ctx, cmd)
	case CmdMove:
		r = e.execMove(ctx, cmd)
	case CmdRemove:
		r = e.execRemove(ctx, cmd)
	case CmdShow:
		r = reply("trigger.shown", "count", e.Show(cmd.Caller))
	}

	if r.OK() && cmd.Name != CmdShow {
		e.recordCommand(ctx, cmd, r)
	}
	e.logger.Debug("command executed", "caller", cmd.Caller, "command", cmd.Name, "reply", r.Key)
	return r
}

// recordCommand appends a successful command to the audit trail. A
// failed write is logged; the command has already taken effect.
func (e *Engine) recordCommand(ctx context.Context, cmd Command, r Reply) {
	if e.audit == nil {
		return
	}
	entry := &audit.Entry{
		Action:  cmd.Name,
		Subject: audit.SubjectTrigger,
		Actor:   cmd.Caller,
		Source:  audit.SourceCommand,
		MapID:   e.store.MapID(),
		Details: r.Params,
	}
	if cmd.Name == CmdToggle {
		entry.Subject = audit.SubjectVehicle
		entry.SubjectID = strconv.FormatUint(uint64(cmd.Vehicle), 10)
		entry.Details = map[string]any{"automated": r.Key == "automation.enabled"}
	} else if id, ok := r.Params["id"].(int); ok {
		entry.SubjectID = strconv.Itoa(id)
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.logger.Warn("audit record failed", "command", cmd.Name, "caller", cmd.Caller, "error", err)
	}
}

func (e *Engine) execToggle(ctx context.Context, cmd Command) Reply {
	enabled, err := e.ToggleAutomation(ctx, cmd.Vehicle)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	if enabled {
		return reply("automation.enabled", "vehicle", cmd.Vehicle)
	}
	return reply("automation.disabled", "vehicle", cmd.Vehicle)
}

func (e *Engine) execAdd(ctx context.Context, cmd Command) Reply {
	if cmd.Aim == nil {
		return e.errorReply(cmd, ErrNoTrack)
	}
	opts, err := trigger.ParseOptions(cmd.Args)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	t, err := e.AddTrigger(ctx, *cmd.Aim, opts)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	return reply("trigger.added", "id", t.ID, "label", t.Label())
}

func (e *Engine) execUpdate(ctx context.Context, cmd Command) Reply {
	id, rest, ok := splitID(cmd.Args)
	if !ok {
		return reply("error.usage", "usage", "update <id> [start] [speed] [track]")
	}
	opts, err := trigger.ParseOptions(rest)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	t, err := e.UpdateTrigger(ctx, id, opts)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	return reply("trigger.updated", "id", t.ID, "label", t.Label())
}

func (e *Engine) execMove(ctx context.Context, cmd Command) Reply {
	id, _, ok := splitID(cmd.Args)
	if !ok {
		return reply("error.usage", "usage", "move <id>")
	}
	if cmd.Aim == nil {
		return e.errorReply(cmd, ErrNoTrack)
	}
	t, err := e.MoveTrigger(ctx, id, *cmd.Aim)
	if err != nil {
		return e.errorReply(cmd, err)
	}
	return reply("trigger.moved", "id", t.ID, "position", t.Position.String())
}

func (e *Engine) execRemove(ctx context.Context, cmd Command) Reply {
	id, _, ok := splitID(cmd.Args)
	if !ok {
		return reply("error.usage", "usage", "remove <id>")
	}
	if err := e.RemoveTrigger(ctx, id); err != nil {
		return e.errorReply(cmd, err)
	}
	return reply("trigger.removed", "id", id)
}

// errorReply maps a failure to its message key. Unexpected errors are
// logged and reported as a storage failure.
func (e *Engine) errorReply(cmd Command, err error) Reply {
	switch {
	case errors.Is(err, ErrNoTrack):
		return reply("error.no_track")
	case errors.Is(err, ErrNoVehicle), errors.Is(err, automation.ErrVehicleNotFound):
		return reply("error.no_vehicle")
	case errors.Is(err, ErrNotRunning):
		return reply("error.not_ready")
	case errors.Is(err, automation.ErrBlanketAutomation):
		return reply("error.blanket_automation")
	case errors.Is(err, automation.ErrAutomationVetoed):
		return reply("error.vetoed", "vehicle", cmd.Vehicle)
	case errors.Is(err, automation.ErrAvatarUnavailable):
		return reply("error.no_avatar")
	case errors.Is(err, trigger.ErrNotFound):
		return reply("error.trigger_not_found")
	case trigger.IsInvalidOption(err):
		return reply("error.invalid_option", "detail", err.Error())
	}
	e.logger.Error("command failed", "caller", cmd.Caller, "command", cmd.Name, "error", err)
	return reply("error.storage")
}

// splitID parses a positive trigger id from the first argument.
func splitID(args []string) (int, []string, bool) {
	if len(args) == 0 {
		return 0, nil, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || id <= 0 {
		return 0, nil, false
	}
	return id, args[1:], true
}
