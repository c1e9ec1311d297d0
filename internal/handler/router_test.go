package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-tavern/chatcli/internal/model/command"
)

func TestRouteCommands(t *testing.T) {
	r := NewRouter([]string{"clear"})

	cases := map[string]command.Command{
		"exit":      command.Exit,
		"EXIT":      command.Exit,
		"Exit":      command.Exit,
		"clear":     command.ClearTerminal,
		"CLEAR":     command.ClearTerminal,
		"cls":       command.None,
		"hello":     command.None,
		"":          command.None,
		" exit":     command.None,
		"exit ":     command.None,
		"exit now":  command.None,
		"clear all": command.None,
	}

	for input, want := range cases {
		assert.Equal(t, want, r.Route(input), "input %q", input)
	}
}

func TestRouteClsAlias(t *testing.T) {
	r := NewRouter([]string{"clear", "CLS"})

	assert.Equal(t, command.ClearTerminal, r.Route("cls"))
	assert.Equal(t, command.ClearTerminal, r.Route("Cls"))
	assert.Equal(t, command.ClearTerminal, r.Route("clear"))
	assert.Equal(t, command.Exit, r.Route("exit"))
}
