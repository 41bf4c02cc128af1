package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/store"
)

func uniques(rows [][]keyboard.InlineBtn) []string {
	var out []string
	for _, row := range rows {
		for _, b := range row {
			out = append(out, b.Unique)
		}
	}
	return out
}

var sampleItems = map[string]store.Item{
	"video_1": {Key: "video_1", Title: "Sunset_timelapse", Description: "Ten minutes of sky", Price: 50, Duration: "10:00", ContentRef: "f1"},
	"video_2": {Key: "video_2", Title: "Harbor", Description: "Boats at dawn", Price: 25},
}

func TestMainMenuShowsAdminPanelOnlyToAdmins(t *testing.T) {
	assert.NotContains(t, uniques(mainMenuRows(false)), menu.AdminPanel)
	assert.Contains(t, uniques(mainMenuRows(true)), menu.AdminPanel)
}

func TestCatalogView(t *testing.T) {
	empty := catalogView(nil, nil)
	assert.Equal(t, "No videos available at the moment.", empty.text)

	v := catalogView([]string{"video_1", "video_2"}, sampleItems)
	assert.Contains(t, v.text, `Sunset\_timelapse`)
	assert.Contains(t, v.text, "Price: 25 Stars")
	assert.Equal(t, []string{menu.Details, menu.Buy, menu.Details, menu.Buy, menu.Main}, uniques(v.rows))
	assert.Equal(t, "video_2", v.rows[1][1].Data)
}

func TestDetailsViewOffersWatchToOwners(t *testing.T) {
	it := sampleItems["video_1"]
	assert.Equal(t, menu.Buy, detailsView(it, false).rows[0][0].Unique)
	assert.Equal(t, menu.Watch, detailsView(it, true).rows[0][0].Unique)
}

func TestPurchasesViewKeepsRemovedItems(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	v := purchasesView([]store.Purchase{
		{ItemKey: "video_1", PurchasedAt: at, PricePaid: 50},
		{ItemKey: "video_9", PurchasedAt: at, PricePaid: 10},
	}, sampleItems)

	assert.Contains(t, v.text, "Purchased on: 2026-03-01")
	assert.Contains(t, v.text, `video\_9* (no longer available)`)
	assert.Equal(t, []string{menu.Watch, menu.Main}, uniques(v.rows))

	assert.Equal(t, "You haven't purchased any videos yet.", purchasesView(nil, sampleItems).text)
}

func TestSalesViewTotals(t *testing.T) {
	v := salesView([]store.SaleStat{
		{ItemKey: "video_1", Title: "Harbor", Count: 2, Revenue: 50},
		{ItemKey: "video_3", Count: 1, Revenue: 10},
	})
	assert.Contains(t, v.text, "*Harbor*: 2 sold, 50 Stars")
	assert.Contains(t, v.text, `video\_3 (removed)`)
	assert.Contains(t, v.text, "*Total:* 3 sold, 60 Stars")
	assert.Equal(t, "📊 No sales yet.", salesView(nil).text)
}
