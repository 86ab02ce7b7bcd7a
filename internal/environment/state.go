// SPDX-License-Identifier: MPL-2.0

package environment

// State is a step of the activation state machine.
type State int

const (
	// StateIdle means no operation is running.
	StateIdle State = iota
	// StateCheckingCli locates the pixi binary.
	StateCheckingCli
	// StateSelectingEnvironment queries and picks the environment.
	StateSelectingEnvironment
	// StateInstalling runs the visible install.
	StateInstalling
	// StateRunningShellHook captures the shell-hook exports.
	StateRunningShellHook
	// StateApplyingVariables writes the parsed variables.
	StateApplyingVariables
	// StatePersisted means the last activation completed.
	StatePersisted
	// StateFailed means the last operation stopped on an error.
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateCheckingCli:          "checking-cli",
	StateSelectingEnvironment: "selecting-environment",
	StateInstalling:           "installing",
	StateRunningShellHook:     "running-shell-hook",
	StateApplyingVariables:    "applying-variables",
	StatePersisted:            "persisted",
	StateFailed:               "failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
