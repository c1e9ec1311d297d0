package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/chatcli/internal/model/command"
)

func TestMachineStartsRunning(t *testing.T) {
	m := command.NewMachine()
	assert.Equal(t, command.Running, m.State())
	assert.True(t, m.Running())

	var zero command.Machine
	assert.Equal(t, command.Running, zero.State())
}

func TestMachineTransitions(t *testing.T) {
	m := command.NewMachine()

	assert.Equal(t, command.Running, m.Apply(command.None))
	assert.Equal(t, command.Running, m.Apply(command.ClearTerminal))
	assert.Equal(t, command.Stopped, m.Apply(command.Exit))
	assert.False(t, m.Running())
}

func TestMachineStoppedIsTerminal(t *testing.T) {
	m := command.NewMachine()
	m.Apply(command.Exit)

	assert.Equal(t, command.Stopped, m.Apply(command.None))
	assert.Equal(t, command.Stopped, m.Apply(command.ClearTerminal))
}

func TestMachineRejectsUnknownCommand(t *testing.T) {
	m := command.NewMachine()
	require.Panics(t, func() { m.Apply(command.Command(42)) })
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "exit", command.Exit.String())
	assert.Equal(t, "clear", command.ClearTerminal.String())
	assert.Equal(t, "none", command.None.String())
	assert.Equal(t, "stopped", command.Stopped.String())
}
