package app

import (
	"context"
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/videoshop/core/config"
	tg "github.com/m3rciful/videoshop/core/telegram"
	"github.com/m3rciful/videoshop/core/telegram/callbacks"
	"github.com/m3rciful/videoshop/core/telegram/commands"
	tghelpers "github.com/m3rciful/videoshop/core/telegram/helpers"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/purchase"
	"github.com/m3rciful/videoshop/internal/store"
	"github.com/m3rciful/videoshop/internal/wizard"

	tele "gopkg.in/telebot.v4"
)

type handlers struct {
	cfg      *coreconfig.Config
	store    *store.Store
	workflow *purchase.Workflow
	wizard   *wizard.Machine
	auth     adminAuth
}

func markup(v view) *tele.ReplyMarkup { return keyboard.InlineButtonsRows(v.rows...) }

// show edits the pressed button's message or sends a new one.
func show(c tele.Context, v view) error {
	if c.Callback() != nil {
		return tghelpers.EditOrSendMD(c, v.text, markup(v))
	}
	return tghelpers.SendMD(c, v.text, markup(v))
}

// say sends plain text, editing in place for button presses.
func say(c tele.Context, text string, rows ...[]keyboard.InlineBtn) error {
	if c.Callback() != nil {
		return tghelpers.EditOrSend(c, text, keyboard.InlineButtonsRows(rows...))
	}
	return tghelpers.Send(c, text, keyboard.InlineButtonsRows(rows...))
}

// commandArg returns the first argument of a command message.
func commandArg(c tele.Context) string {
	fields := strings.Fields(c.Text())
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func ctxOf(c tele.Context) context.Context { return tghelpers.BuildContext(c) }

func (h *handlers) isAdmin(c tele.Context) bool {
	u := c.Sender()
	return u != nil && (h.store.IsAdmin(u.ID) || h.cfg.IsAllowListed(u.ID))
}

func (h *handlers) register(reg *tg.Registry, adminOnly tele.MiddlewareFunc) error {
	for name, cmd := range map[string]commands.Command{
		"/start":       {Handler: h.start, Description: "Start the bot"},
		"/help":        {Handler: h.help, Description: "Show help"},
		"/list":        {Handler: h.browse, Description: "List available videos", Aliases: []string{"videos"}},
		"/view":        {Handler: h.viewCommand, Description: "View video details"},
		"/buy":         {Handler: h.buyCommand, Description: "Purchase a video"},
		"/mypurchases": {Handler: h.purchases, Description: "Your purchased videos", Aliases: []string{"purchases"}},
		"/admin":       {Handler: h.adminPanel, Description: "Admin panel", AdminOnly: true},
		"/addvideo":    {Handler: h.startAddItem, Description: "Add a new video", AdminOnly: true},
		"/removevideo": {Handler: h.removeCommand, Description: "Remove a video", AdminOnly: true},
		"/broadcast":   {Handler: h.startBroadcast, Description: "Message all users", AdminOnly: true},
		"/sales":       {Handler: h.sales, Description: "Sales statistics", AdminOnly: true},
		"/cancel":      {Handler: h.cancelWizard, Description: "Abort the current admin dialog", AdminOnly: true},
	} {
		reg.RegisterCommand(name, cmd)
	}

	public := map[string]tele.HandlerFunc{
		menu.Main:      h.mainMenu,
		menu.Browse:    h.browse,
		menu.Details:   h.detailsButton,
		menu.Buy:       h.buyButton,
		menu.CancelBuy: h.cancelBuy,
		menu.Purchases: h.purchases,
		menu.Watch:     h.watch,
		menu.Help:      h.help,
	}
	admin := map[string]tele.HandlerFunc{
		menu.AdminPanel:  h.adminPanel,
		menu.AdminAdd:    h.startAddItem,
		menu.AdminList:   h.adminCatalog,
		menu.AdminRemove: h.removeButton,
		menu.AdminSales:  h.sales,
		menu.AdminCast:   h.startBroadcast,
	}
	for key, fn := range public {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	for key, fn := range admin {
		if err := reg.RegisterCallback(key, adminOnly(fn)); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlers) start(c tele.Context) error {
	name := ""
	if u := c.Sender(); u != nil {
		name = u.FirstName
	}
	return show(c, welcomeView(name, h.isAdmin(c)))
}

func (h *handlers) mainMenu(c tele.Context) error { return show(c, mainMenuView(h.isAdmin(c))) }

func (h *handlers) help(c tele.Context) error { return show(c, helpView(h.isAdmin(c))) }

func (h *handlers) browse(c tele.Context) error {
	return show(c, catalogView(h.store.ItemKeys(), h.store.ListItems()))
}

func (h *handlers) details(c tele.Context, key string) error {
	it, ok := h.store.GetItem(key)
	if !ok {
		return say(c, fmt.Sprintf("Video with ID %s not found.", key), menu.BackToMenu())
	}
	return show(c, detailsView(it, h.store.HasPurchased(c.Sender().ID, key)))
}

func (h *handlers) viewCommand(c tele.Context) error {
	key := commandArg(c)
	if key == "" {
		return tghelpers.Send(c, "Please provide a video ID. Example: /view video_1")
	}
	return h.details(c, key)
}

func (h *handlers) detailsButton(c tele.Context) error {
	return h.details(c, callbacks.CallbackPayload(c))
}

// buyRequest normalizes both buy entry points into one purchase request.
func buyRequest(c tele.Context, key string, src purchase.Source) purchase.Request {
	u := c.Sender()
	req := purchase.Request{UserID: u.ID, Handle: u.Username, ItemKey: key, Source: src}
	if chat := c.Chat(); chat != nil {
		req.ChatID = chat.ID
	} else {
		req.ChatID = u.ID
	}
	return req
}

func (h *handlers) buyCommand(c tele.Context) error {
	key := commandArg(c)
	if key == "" {
		return tghelpers.Send(c, "Please provide a video ID. Example: /buy video_1")
	}
	return h.workflow.Request(ctxOf(c), buyRequest(c, key, purchase.SourceCommand))
}

func (h *handlers) buyButton(c tele.Context) error {
	return h.workflow.Request(ctxOf(c), buyRequest(c, callbacks.CallbackPayload(c), purchase.SourceButton))
}

func (h *handlers) cancelBuy(c tele.Context) error {
	_ = c.Delete()
	return tghelpers.Send(c, "Purchase cancelled.", markup(mainMenuView(h.isAdmin(c))))
}

func (h *handlers) purchases(c tele.Context) error {
	return show(c, purchasesView(h.store.ListPurchases(c.Sender().ID), h.store.ListItems()))
}

func (h *handlers) watch(c tele.Context) error {
	req := buyRequest(c, callbacks.CallbackPayload(c), purchase.SourceButton)
	return h.workflow.Deliver(ctxOf(c), req.UserID, req.ChatID, req.ItemKey)
}

func (h *handlers) adminPanel(c tele.Context) error { return show(c, adminPanelView()) }

func (h *handlers) adminCatalog(c tele.Context) error {
	return show(c, adminCatalogView(h.store.ItemKeys(), h.store.ListItems()))
}

func (h *handlers) sales(c tele.Context) error { return show(c, salesView(h.store.Sales())) }

func (h *handlers) startAddItem(c tele.Context) error {
	key, ok := wizardKey(c)
	if !ok {
		return nil
	}
	return say(c, h.wizard.StartAddItem(ctxOf(c), key))
}

func (h *handlers) startBroadcast(c tele.Context) error {
	key, ok := wizardKey(c)
	if !ok {
		return nil
	}
	return say(c, h.wizard.StartBroadcast(ctxOf(c), key))
}

func (h *handlers) cancelWizard(c tele.Context) error {
	key, ok := wizardKey(c)
	if ok && h.wizard.Cancel(key) {
		return tghelpers.Send(c, "Cancelled.", adminPanelButton())
	}
	return tghelpers.Send(c, "Nothing to cancel.")
}

func (h *handlers) remove(c tele.Context, key string) (string, error) {
	ok, err := h.store.RemoveItem(ctxOf(c), key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Video with ID %s not found.", key), nil
	}
	return fmt.Sprintf("Video %s removed. Existing purchases are kept.", key), nil
}

func (h *handlers) removeCommand(c tele.Context) error {
	key := commandArg(c)
	if key == "" {
		return tghelpers.Send(c, "Please provide a video ID. Example: /removevideo video_1")
	}
	msg, err := h.remove(c, key)
	if err != nil {
		return err
	}
	return tghelpers.Send(c, msg)
}

func (h *handlers) removeButton(c tele.Context) error {
	msg, err := h.remove(c, callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	_ = tghelpers.Notify(c, msg)
	return h.adminCatalog(c)
}

// PreCheckout implements router.Payments.
func (h *handlers) PreCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}
	var userID int64
	if q.Sender != nil {
		userID = q.Sender.ID
	}
	d := h.workflow.PreCheckout(ctxOf(c), purchase.PreCheckout{
		UserID:   userID,
		Payload:  q.Payload,
		Currency: q.Currency,
		Amount:   int64(q.Total),
	})
	if d.OK {
		return c.Accept()
	}
	return c.Accept(d.Reason)
}

// Paid implements router.Payments.
func (h *handlers) Paid(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil || c.Sender() == nil {
		return nil
	}
	p := msg.Payment
	req := buyRequest(c, "", purchase.SourceButton)
	return h.workflow.Confirm(ctxOf(c), purchase.Confirmation{
		UserID:   req.UserID,
		ChatID:   req.ChatID,
		Handle:   req.Handle,
		Payload:  p.Payload,
		Currency: p.Currency,
		Amount:   int64(p.Total),
		ChargeID: p.TelegramChargeID,
	})
}
