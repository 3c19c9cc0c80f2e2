package command

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"lane-defense/internal/game"
	"lane-defense/pkg/logger"
)

var (
	// ErrRateLimited is returned when a client sends commands too quickly
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized is returned for a locked restart from an untrusted channel
	ErrUnauthorized = errors.New("restart requires admin token")
)

// Controller is the part of the engine commands drive
type Controller interface {
	SelectKind(kind game.DefenderKind) error
	TryPlace(col, lane int, kind game.DefenderKind, source string) (game.EntityID, error)
	Collect(id game.EntityID, source string) (int, bool)
	PlaceAt(x, y float64, source string) (game.PointerResult, error)
	Restart() game.RunSummary
}

// Result is the reply to one command
type Result struct {
	OK         bool          `json:"ok"`
	Command    string        `json:"command,omitempty"`
	Message    string        `json:"message"`
	DefenderID game.EntityID `json:"defenderId,omitempty"`
	Collected  int           `json:"collected,omitempty"`
	Err        error         `json:"-"`
}

func failed(cmd Command, err error) Result {
	return Result{Command: cmd.Name, Message: err.Error(), Err: err}
}

// Handler processes text commands and applies them to the game
type Handler struct {
	ctrl          Controller
	rateLimiter   *RateLimiter
	restartLocked atomic.Bool
}

// NewHandler creates a new command handler
func NewHandler(ctrl Controller, cfg RateLimitConfig) *Handler {
	return &Handler{
		ctrl:        ctrl,
		rateLimiter: NewRateLimiter(cfg),
	}
}

// LockRestart makes restart available only through HandleAdminLine
func (h *Handler) LockRestart(locked bool) {
	h.restartLocked.Store(locked)
}

// HandleLine rate limits, parses and executes one command line
func (h *Handler) HandleLine(line, source string) Result {
	return h.handleLine(line, source, false)
}

// HandleAdminLine is HandleLine for a caller that has proven admin rights
func (h *Handler) HandleAdminLine(line, source string) Result {
	return h.handleLine(line, source, true)
}

func (h *Handler) handleLine(line, source string, admin bool) Result {
	if !h.rateLimiter.Allow(source) {
		logger.Log.WithField("source", source).Debug("🚫 Command rate limited")
		return Result{Message: ErrRateLimited.Error(), Err: ErrRateLimited}
	}

	cmd, err := Parse(line, source)
	if err != nil {
		return failed(cmd, err)
	}
	return h.execute(cmd, admin)
}

// Execute applies an already parsed command from an untrusted channel
func (h *Handler) Execute(cmd Command) Result {
	return h.execute(cmd, false)
}

func (h *Handler) execute(cmd Command, admin bool) Result {
	var res Result
	switch cmd.Type {
	case CmdSelect:
		res = h.handleSelect(cmd)
	case CmdPlace:
		res = h.handlePlace(cmd)
	case CmdCollect:
		res = h.handleCollect(cmd)
	case CmdAt:
		res = h.handleAt(cmd)
	case CmdRestart:
		res = h.handleRestart(cmd, admin)
	case CmdHelp:
		res = Result{OK: true, Message: HelpText}
	default:
		res = failed(cmd, fmt.Errorf("%w: %q", ErrUnknown, cmd.Name))
	}
	res.Command = cmd.Name

	if res.Err != nil {
		logger.Log.WithFields(logrus.Fields{
			"source":  cmd.Source,
			"command": cmd.Name,
		}).WithError(res.Err).Debug("Command rejected")
	}
	return res
}

func (h *Handler) handleSelect(cmd Command) Result {
	if err := h.ctrl.SelectKind(cmd.Kind); err != nil {
		return failed(cmd, err)
	}
	return Result{OK: true, Message: "selected " + cmd.Kind.String()}
}

func (h *Handler) handlePlace(cmd Command) Result {
	id, err := h.ctrl.TryPlace(cmd.Col, cmd.Lane, cmd.Kind, cmd.Source)
	if err != nil {
		return failed(cmd, err)
	}
	return Result{
		OK:         true,
		Message:    fmt.Sprintf("placed %s at %d,%d", cmd.Kind, cmd.Col, cmd.Lane),
		DefenderID: id,
	}
}

func (h *Handler) handleCollect(cmd Command) Result {
	value, ok := h.ctrl.Collect(cmd.ID, cmd.Source)
	if !ok {
		return Result{Message: fmt.Sprintf("no collectible %d", cmd.ID)}
	}
	return Result{OK: true, Message: fmt.Sprintf("collected %d", value), Collected: value}
}

func (h *Handler) handleAt(cmd Command) Result {
	pr, err := h.ctrl.PlaceAt(cmd.X, cmd.Y, cmd.Source)
	if err != nil {
		return failed(cmd, err)
	}
	switch pr.Action {
	case "collect":
		return Result{OK: true, Message: fmt.Sprintf("collected %d", pr.Collected), Collected: pr.Collected}
	case "place":
		return Result{OK: true, Message: "placed " + pr.Kind.String(), DefenderID: pr.DefenderID}
	}
	return Result{Message: "nothing there"}
}

func (h *Handler) handleRestart(cmd Command, admin bool) Result {
	if h.restartLocked.Load() && !admin {
		return failed(cmd, ErrUnauthorized)
	}
	prev := h.ctrl.Restart()
	logger.Log.WithFields(logrus.Fields{
		"source":    cmd.Source,
		"prevScore": prev.Score,
	}).Info("🔄 Restart requested")
	return Result{OK: true, Message: fmt.Sprintf("restarted (previous score %d)", prev.Score)}
}
