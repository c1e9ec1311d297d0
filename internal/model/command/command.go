package command

import "fmt"

// Command is the control action recognised in a line of user input.
type Command int

const (
	// None means the input is ordinary chat content.
	None Command = iota
	// Exit ends the session and saves the transcript.
	Exit
	// ClearTerminal clears the terminal display.
	ClearTerminal
)

func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case Exit:
		return "exit"
	case ClearTerminal:
		return "clear"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// RunState tracks whether the main loop keeps accepting input.
type RunState int

const (
	Running RunState = iota
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Machine is the run-state machine driven by interpreted commands.
// The zero value is Running.
type Machine struct {
	state RunState
}

// NewMachine returns a machine in the Running state.
func NewMachine() *Machine {
	return &Machine{state: Running}
}

// State returns the current run state.
func (m *Machine) State() RunState {
	return m.state
}

// Running reports whether the loop should keep reading input.
func (m *Machine) Running() bool {
	return m.state == Running
}

// Apply performs the transition for cmd and returns the resulting state.
// Stopped is terminal.
func (m *Machine) Apply(cmd Command) RunState {
	if m.state == Stopped {
		return m.state
	}

	switch cmd {
	case Exit:
		m.state = Stopped
	case ClearTerminal, None:
		// stays running
	default:
		panic(fmt.Sprintf("command: unknown command %d", int(cmd)))
	}
	return m.state
}
