// Package commands describes the slash commands a bot registers.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command binds a slash command to its handler. AdminOnly commands are
// wrapped with the admin check and only published in administrator chats.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	// Hidden commands are routed but never published in the command menu.
	Hidden bool
	// Aliases are matched against free text, with or without the slash.
	Aliases []string
}

// Listed reports whether the command appears in a command menu, which
// includes admin-only commands when withAdmin is set.
func (c Command) Listed(withAdmin bool) bool {
	if c.Hidden {
		return false
	}
	return !c.AdminOnly || withAdmin
}
