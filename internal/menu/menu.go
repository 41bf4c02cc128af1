// Package menu names the inline buttons shared by the shop's handlers.
package menu

import "github.com/m3rciful/videoshop/core/telegram/keyboard"

// Callback unique keys. Payload-carrying buttons put the item key in Data.
const (
	Main        = "menu"
	Browse      = "browse"
	Details     = "details"
	Buy         = "buy"
	CancelBuy   = "cancel_buy"
	Purchases   = "purchases"
	Watch       = "watch"
	Help        = "help"
	AdminPanel  = "admin"
	AdminAdd    = "admin_add"
	AdminList   = "admin_list"
	AdminRemove = "admin_remove"
	AdminSales  = "admin_sales"
	AdminCast   = "admin_broadcast"
)

// Btn builds a button without payload.
func Btn(text, unique string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique}
}

// ItemBtn builds a button carrying an item key.
func ItemBtn(text, unique, key string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique, Data: key}
}

// MyPurchases is the shortcut offered after a purchase or a duplicate attempt.
func MyPurchases() []keyboard.InlineBtn {
	return keyboard.Row(Btn("🎞 My purchases", Purchases))
}

// BackToMenu returns a single "main menu" row.
func BackToMenu() []keyboard.InlineBtn {
	return keyboard.Row(Btn("⬅️ Main menu", Main))
}
