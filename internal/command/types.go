package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"lane-defense/internal/game"
)

// Command parsing errors
var (
	ErrEmpty        = errors.New("empty command")
	ErrUnknown      = errors.New("unknown command")
	ErrBadArguments = errors.New("bad arguments")
)

// CommandType for routing
type CommandType int

const (
	CmdSelect  CommandType = iota // select <kind>
	CmdPlace                      // place <kind> <col> <lane>
	CmdCollect                    // collect <id>
	CmdAt                         // at <x> <y>
	CmdRestart                    // restart
	CmdHelp                       // help
	CmdUnknown
)

// SupportedCommands maps command words to types
var SupportedCommands = map[string]CommandType{
	"select": CmdSelect,
	"sel":    CmdSelect,
	"s":      CmdSelect,

	"place": CmdPlace,
	"p":     CmdPlace,

	"collect": CmdCollect,
	"pick":    CmdCollect,
	"c":       CmdCollect,

	"at":    CmdAt,
	"click": CmdAt,

	"restart": CmdRestart,
	"reset":   CmdRestart,

	"help": CmdHelp,
	"?":    CmdHelp,
}

// HelpText lists the accepted commands
const HelpText = "commands: select <attacker|producer|blocker> | place <kind> <col> <lane> | " +
	"collect <id> | at <x> <y> | restart | help"

// Command is one parsed text command with typed arguments
type Command struct {
	Type       CommandType
	Name       string // Command word as typed, lowercased
	Kind       game.DefenderKind
	Col        int
	Lane       int
	ID         game.EntityID
	X, Y       float64
	Source     string // Client that sent it
	ReceivedAt time.Time
}

// GetCommandType returns the command type for a word (case-insensitive)
func GetCommandType(word string) CommandType {
	if t, ok := SupportedCommands[strings.ToLower(word)]; ok {
		return t
	}
	return CmdUnknown
}

// Parse reads one command line. A leading '!' or '/' is accepted.
func Parse(line, source string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	word := strings.ToLower(strings.TrimLeft(fields[0], "!/"))
	args := fields[1:]

	cmd := Command{
		Type:       GetCommandType(word),
		Name:       word,
		Source:     source,
		ReceivedAt: time.Now(),
	}

	var err error
	switch cmd.Type {
	case CmdSelect:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: select <kind>", ErrBadArguments)
		}
		cmd.Kind, err = game.ParseDefenderKind(args[0])

	case CmdPlace:
		if len(args) != 3 {
			return cmd, fmt.Errorf("%w: place <kind> <col> <lane>", ErrBadArguments)
		}
		if cmd.Kind, err = game.ParseDefenderKind(args[0]); err != nil {
			return cmd, err
		}
		if cmd.Col, err = strconv.Atoi(args[1]); err != nil {
			return cmd, fmt.Errorf("%w: col %q", ErrBadArguments, args[1])
		}
		if cmd.Lane, err = strconv.Atoi(args[2]); err != nil {
			return cmd, fmt.Errorf("%w: lane %q", ErrBadArguments, args[2])
		}

	case CmdCollect:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: collect <id>", ErrBadArguments)
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil || id == 0 {
			return cmd, fmt.Errorf("%w: id %q", ErrBadArguments, args[0])
		}
		cmd.ID = game.EntityID(id)

	case CmdAt:
		if len(args) != 2 {
			return cmd, fmt.Errorf("%w: at <x> <y>", ErrBadArguments)
		}
		if cmd.X, err = strconv.ParseFloat(args[0], 64); err != nil {
			return cmd, fmt.Errorf("%w: x %q", ErrBadArguments, args[0])
		}
		if cmd.Y, err = strconv.ParseFloat(args[1], 64); err != nil {
			return cmd, fmt.Errorf("%w: y %q", ErrBadArguments, args[1])
		}
		if math.IsNaN(cmd.X) || math.IsNaN(cmd.Y) || math.IsInf(cmd.X, 0) || math.IsInf(cmd.Y, 0) {
			return cmd, fmt.Errorf("%w: point must be finite", ErrBadArguments)
		}

	case CmdRestart, CmdHelp:
		if len(args) != 0 {
			return cmd, fmt.Errorf("%w: %s takes no arguments", ErrBadArguments, word)
		}

	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknown, word)
	}
	return cmd, err
}
