package server

import (
	"errors"
	"fmt"
)

var ErrLifecycleOrder = errors.New("server: invalid lifecycle transition")

// Phase is the server's runtime lifecycle phase.
type Phase string

const (
	PhaseStopped Phase = "stopped"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// Status reports lifecycle, session and engine state.
type Status struct {
	Phase             Phase  `json:"phase"`
	ListenAddr        string `json:"listen_addr"`
	Sessions          int64  `json:"sessions"`
	EngineReady       bool   `json:"engine_ready"`
	Direction         string `json:"direction"`
	Environment       string `json:"environment"`
	AutoPolicy        string `json:"auto_policy"`
	Tokens            int    `json:"tokens"`
	Translations      uint64 `json:"translations"`
	Failures          uint64 `json:"failures"`
	Reinitializations uint64 `json:"reinitializations"`
}

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}
