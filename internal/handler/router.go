package handler

import (
	"strings"

	"github.com/zhouzirui/z-tavern/chatcli/internal/model/command"
)

// Router classifies raw input lines as control commands or chat content.
type Router struct {
	routes map[string]command.Command
}

// NewRouter registers exit plus the given clear aliases. Aliases are matched
// case-insensitively.
func NewRouter(clearAliases []string) *Router {
	routes := map[string]command.Command{
		"exit": command.Exit,
	}
	for _, alias := range clearAliases {
		routes[strings.ToLower(alias)] = command.ClearTerminal
	}
	return &Router{routes: routes}
}

// Route returns the command for input. Only an exact, case-insensitive match of the whole
// line is a command; surrounding whitespace is not trimmed.
func (r *Router) Route(input string) command.Command {
	if cmd, ok := r.routes[strings.ToLower(input)]; ok {
		return cmd
	}
	return command.None
}
