package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/videoshop/core/telegram/format"
	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/store"
)

// view is a rendered Markdown message with its inline keyboard.
type view struct {
	text string
	rows [][]keyboard.InlineBtn
}

func mainMenuRows(admin bool) [][]keyboard.InlineBtn {
	rows := [][]keyboard.InlineBtn{
		keyboard.Row(menu.Btn("🎬 Browse videos", menu.Browse)),
		keyboard.Row(menu.Btn("🎞 My purchases", menu.Purchases), menu.Btn("❓ Help", menu.Help)),
	}
	if admin {
		rows = append(rows, keyboard.Row(menu.Btn("🔐 Admin panel", menu.AdminPanel)))
	}
	return rows
}

func welcomeView(name string, admin bool) view {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Welcome, %s!\n\n", format.MD(name)) +
		"I'm a video sales bot. You can browse and purchase videos using Telegram Stars.\n\n" +
		"Use the buttons below or /help to see what I can do."
	return view{text: text, rows: mainMenuRows(admin)}
}

func mainMenuView(admin bool) view {
	return view{text: "🏠 *Main menu*\n\nWhat would you like to do?", rows: mainMenuRows(admin)}
}

func helpView(admin bool) view {
	var b strings.Builder
	b.WriteString("🎬 *Video Shop Help* 🎬\n\n")
	b.WriteString("*Commands:*\n")
	b.WriteString("/start - Start the bot\n")
	b.WriteString("/help - Show this help message\n")
	b.WriteString("/list - List available videos\n")
	b.WriteString("/view <id> - View video details\n")
	b.WriteString("/buy <id> - Purchase a video\n")
	b.WriteString("/mypurchases - View your purchased videos\n")
	if admin {
		b.WriteString("\n*Admin commands:*\n")
		b.WriteString("/admin - Access admin panel\n")
		b.WriteString("/addvideo - Add a new video\n")
		b.WriteString("/removevideo <id> - Remove a video\n")
		b.WriteString("/broadcast - Message all users\n")
		b.WriteString("/sales - Sales statistics\n")
		b.WriteString("/cancel - Abort the current admin dialog\n")
	}
	return view{text: b.String(), rows: [][]keyboard.InlineBtn{menu.BackToMenu()}}
}

func catalogView(keys []string, items map[string]store.Item) view {
	if len(keys) == 0 {
		return view{text: "No videos available at the moment.", rows: [][]keyboard.InlineBtn{menu.BackToMenu()}}
	}
	var b strings.Builder
	b.WriteString("🎬 *Available Videos* 🎬\n\n")
	rows := make([][]keyboard.InlineBtn, 0, len(keys)+1)
	for _, key := range keys {
		it := items[key]
		fmt.Fprintf(&b, "*%s*\n", format.MD(it.Title))
		if it.Duration != "" {
			fmt.Fprintf(&b, "Duration: %s\n", format.MD(it.Duration))
		}
		fmt.Fprintf(&b, "Price: %d Stars\n\n", it.Price)
		rows = append(rows, keyboard.Row(
			menu.ItemBtn("ℹ️ "+format.Truncate(it.Title, 24), menu.Details, key),
			menu.ItemBtn(fmt.Sprintf("⭐️ Buy %d", it.Price), menu.Buy, key),
		))
	}
	rows = append(rows, menu.BackToMenu())
	return view{text: b.String(), rows: rows}
}

func detailsView(it store.Item, owned bool) view {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 *%s*\n\n", format.MD(it.Title))
	fmt.Fprintf(&b, "%s\n\n", format.MD(it.Description))
	if it.Duration != "" {
		fmt.Fprintf(&b, "*Duration:* %s\n", format.MD(it.Duration))
	}
	if it.Category != "" {
		fmt.Fprintf(&b, "*Category:* %s\n", format.MD(it.Category))
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(&b, "*Tags:* %s\n", format.MD(strings.Join(it.Tags, ", ")))
	}
	fmt.Fprintf(&b, "*Price:* %d Stars\n", it.Price)

	action := menu.ItemBtn(fmt.Sprintf("⭐️ Buy for %d Stars", it.Price), menu.Buy, it.Key)
	if owned {
		action = menu.ItemBtn("▶️ Watch", menu.Watch, it.Key)
	}
	return view{text: b.String(), rows: [][]keyboard.InlineBtn{
		keyboard.Row(action),
		keyboard.Row(menu.Btn("⬅️ Back to videos", menu.Browse)),
	}}
}

func purchasesView(purchases []store.Purchase, items map[string]store.Item) view {
	if len(purchases) == 0 {
		return view{
			text: "You haven't purchased any videos yet.",
			rows: [][]keyboard.InlineBtn{keyboard.Row(menu.Btn("🎬 Browse videos", menu.Browse)), menu.BackToMenu()},
		}
	}
	var b strings.Builder
	b.WriteString("🎬 *Your Purchased Videos* 🎬\n\n")
	rows := make([][]keyboard.InlineBtn, 0, len(purchases)+1)
	for _, p := range purchases {
		date := time.Unix(p.PurchasedAt, 0).UTC().Format("2006-01-02")
		it, ok := items[p.ItemKey]
		if !ok {
			fmt.Fprintf(&b, "*%s* (no longer available)\nPurchased on: %s\n\n", format.MD(p.ItemKey), date)
			continue
		}
		fmt.Fprintf(&b, "*%s*\nPurchased on: %s\nPrice paid: %d Stars\n\n", format.MD(it.Title), date, p.PricePaid)
		rows = append(rows, keyboard.Row(menu.ItemBtn("▶️ Watch "+format.Truncate(it.Title, 28), menu.Watch, p.ItemKey)))
	}
	rows = append(rows, menu.BackToMenu())
	return view{text: b.String(), rows: rows}
}

func adminPanelView() view {
	return view{
		text: "🔐 *Admin Panel* 🔐\n\nSelect an option:",
		rows: [][]keyboard.InlineBtn{
			keyboard.Row(menu.Btn("➕ Add video", menu.AdminAdd)),
			keyboard.Row(menu.Btn("📋 View all videos", menu.AdminList)),
			keyboard.Row(menu.Btn("📊 Sales statistics", menu.AdminSales)),
			keyboard.Row(menu.Btn("📣 Broadcast message", menu.AdminCast)),
			menu.BackToMenu(),
		},
	}
}

func adminCatalogView(keys []string, items map[string]store.Item) view {
	back := keyboard.Row(menu.Btn("⬅️ Admin panel", menu.AdminPanel))
	if len(keys) == 0 {
		return view{text: "No videos in the catalog.", rows: [][]keyboard.InlineBtn{back}}
	}
	var b strings.Builder
	b.WriteString("🎬 *All Videos* 🎬\n\n")
	rows := make([][]keyboard.InlineBtn, 0, len(keys)+1)
	for _, key := range keys {
		it := items[key]
		media := "✅"
		if !it.Deliverable() {
			media = "⚠️ no file"
		}
		fmt.Fprintf(&b, "*%s*\nID: `%s`\nPrice: %d Stars %s\n\n", format.MD(it.Title), key, it.Price, media)
		rows = append(rows, keyboard.Row(menu.ItemBtn("🗑 Remove "+key, menu.AdminRemove, key)))
	}
	rows = append(rows, back)
	return view{text: b.String(), rows: rows}
}

func salesView(stats []store.SaleStat) view {
	back := [][]keyboard.InlineBtn{keyboard.Row(menu.Btn("⬅️ Admin panel", menu.AdminPanel))}
	if len(stats) == 0 {
		return view{text: "📊 No sales yet.", rows: back}
	}
	var (
		b       strings.Builder
		count   int
		revenue int64
	)
	b.WriteString("📊 *Sales Statistics*\n\n")
	for _, s := range stats {
		title := s.Title
		if title == "" {
			title = s.ItemKey + " (removed)"
		}
		fmt.Fprintf(&b, "*%s*: %d sold, %d Stars\n", format.MD(title), s.Count, s.Revenue)
		count += s.Count
		revenue += s.Revenue
	}
	fmt.Fprintf(&b, "\n*Total:* %d sold, %d Stars", count, revenue)
	return view{text: b.String(), rows: back}
}
