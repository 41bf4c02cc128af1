package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/purchase"

	tele "gopkg.in/telebot.v4"
)

var errBotNotStarted = errors.New("messenger: bot not started")

// messenger sends to arbitrary chats through the running bot. Sends are
// synchronous so callers see delivery errors.
type messenger struct {
	bot atomic.Pointer[tele.Bot]
}

func (m *messenger) attach(b *tele.Bot) { m.bot.Store(b) }

func (m *messenger) get() (*tele.Bot, error) {
	b := m.bot.Load()
	if b == nil {
		return nil, errBotNotStarted
	}
	return b, nil
}

// SendText sends plain text; rows become an inline keyboard.
func (m *messenger) SendText(_ context.Context, chatID int64, text string, rows ...[]keyboard.InlineBtn) error {
	b, err := m.get()
	if err != nil {
		return err
	}
	opts := &tele.SendOptions{}
	if len(rows) > 0 {
		opts.ReplyMarkup = keyboard.InlineButtonsRows(rows...)
	}
	_, err = b.Send(tele.ChatID(chatID), text, opts)
	return err
}

// SendInvoice presents a Stars invoice with a pay button and a cancel button.
func (m *messenger) SendInvoice(_ context.Context, chatID int64, inv purchase.Invoice) error {
	b, err := m.get()
	if err != nil {
		return err
	}
	invoice := &tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Prices:      []tele.Price{{Label: inv.Label, Amount: int(inv.Amount)}},
	}
	cancel := keyboard.InlineButtonsRows(keyboard.Row(menu.Btn("Cancel", menu.CancelBuy)))
	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: fmt.Sprintf("Pay ⭐️%d", inv.Amount), Pay: true}},
		cancel.InlineKeyboard[0],
	}}
	_, err = b.Send(tele.ChatID(chatID), invoice, &tele.SendOptions{ReplyMarkup: markup})
	return err
}

// SendVideo sends a stored video by file id.
func (m *messenger) SendVideo(_ context.Context, chatID int64, ref, caption string) error {
	b, err := m.get()
	if err != nil {
		return err
	}
	video := &tele.Video{File: tele.File{FileID: ref}, Caption: caption}
	_, err = b.Send(tele.ChatID(chatID), video)
	return err
}
