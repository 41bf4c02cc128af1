package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/videoshop/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestLookupCommandHandlesArgsAliasesAndMentions(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/mypurchases", commands.Command{Handler: noop, Description: "purchases", Aliases: []string{"purchases"}})
	reg.RegisterCommand("/buy", commands.Command{Handler: noop, Description: "buy"})

	key, _, ok := reg.LookupCommand("/buy video_3")
	require.True(t, ok)
	assert.Equal(t, "/buy", key)

	key, _, ok = reg.LookupCommand("/purchases@videoshop_bot")
	require.True(t, ok)
	assert.Equal(t, "/mypurchases", key)

	_, _, ok = reg.LookupCommand("hello there")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
}

func TestListCommandsFiltersAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	reg.RegisterCommand("/admin", commands.Command{Handler: noop, Description: "admin", AdminOnly: true})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})
	reg.RegisterCommand("nope", commands.Command{Handler: noop, Description: "no slash"})

	public := reg.ListCommands(true, false)
	require.Len(t, public, 1)
	assert.Equal(t, "start", public[0].Text)

	admin := reg.ListCommands(true, true)
	assert.Equal(t, []string{"admin", "start"}, []string{admin[0].Text, admin[1].Text})
	assert.Len(t, reg.ListCommands(false, false), 3)
}

func TestRegisterCallbackRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("buy", noop))
	assert.Error(t, reg.RegisterCallback("buy", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Equal(t, []string{"buy"}, reg.ListCallbacks())

	_, ok := reg.GetCallback("buy")
	assert.True(t, ok)
}
