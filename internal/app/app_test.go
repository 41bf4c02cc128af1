package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/videoshop/core/config"
	coredatabase "github.com/m3rciful/videoshop/core/database"
	"github.com/m3rciful/videoshop/internal/purchase"
	"github.com/m3rciful/videoshop/internal/store"
	"github.com/m3rciful/videoshop/internal/wizard"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n  admin_ids: [42]\n")

	carrier, err := LoadConfig(path)
	require.NoError(t, err)
	cfg := carrier.(*Config)

	assert.Equal(t, StoreFile, cfg.Store.Driver)
	assert.Equal(t, "data/videos.json", cfg.Store.Path)
	assert.Equal(t, "videoshop", cfg.MetricsNamespace)
	assert.Equal(t, 2, cfg.Sender.MaxRetries)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.CoreConfig().Telegram.RunMode)
	assert.True(t, cfg.CoreConfig().IsAllowListed(42))
}

func TestLoadConfigEnvSelectsSQLStore(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")
	t.Setenv("STORE_DRIVER", "SQL")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "shop.db"))

	carrier, err := LoadConfig(path)
	require.NoError(t, err)
	cfg := carrier.(*Config)

	assert.Equal(t, StoreSQL, cfg.Store.Driver)
	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\nstore:\n  driver: mongo\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.NewFilePersister(filepath.Join(t.TempDir(), "videos.json")))
	require.NoError(t, err)
	return st
}

func TestAdminAuthPromotesAllowListedUser(t *testing.T) {
	st := openStore(t)
	auth := adminAuth{store: st, cfg: &coreconfig.Config{Telegram: coreconfig.TelegramConfig{AdminIDs: []int64{42}}}}
	ctx := context.Background()

	assert.False(t, st.IsAdmin(42))
	assert.True(t, auth.IsAdmin(ctx, 42))
	assert.True(t, st.IsAdmin(42), "allow-listed admin is persisted on first check")

	assert.False(t, auth.IsAdmin(ctx, 7))
	_, known := st.GetUser(7)
	assert.False(t, known)
}

func TestAdminAuthHonoursStoredFlag(t *testing.T) {
	st := openStore(t)
	_, err := st.UpsertUser(context.Background(), 9, "ops", true)
	require.NoError(t, err)

	auth := adminAuth{store: st, cfg: &coreconfig.Config{}}
	assert.True(t, auth.IsAdmin(context.Background(), 9))
}

func TestInputFrom(t *testing.T) {
	in := inputFrom(&tele.Message{Text: "Title"})
	assert.Equal(t, "Title", in.Text)
	assert.Nil(t, in.Attachment)

	in = inputFrom(&tele.Message{Caption: "clip", Video: &tele.Video{File: tele.File{FileID: "vid-1"}}})
	require.NotNil(t, in.Attachment)
	assert.Equal(t, wizard.AttachmentVideo, in.Attachment.Kind)
	assert.Equal(t, "vid-1", in.Attachment.Ref)

	in = inputFrom(&tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc-1"}}})
	require.NotNil(t, in.Attachment)
	assert.Equal(t, wizard.AttachmentDocument, in.Attachment.Kind)

	assert.Equal(t, wizard.Input{}, inputFrom(nil))
}

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(upd)
}

func TestCommandArg(t *testing.T) {
	c := newContext(t, tele.Update{Message: &tele.Message{Text: "/buy video_3"}})
	assert.Equal(t, "video_3", commandArg(c))

	c = newContext(t, tele.Update{Message: &tele.Message{Text: "/buy"}})
	assert.Empty(t, commandArg(c))
}

func TestBuyRequestNormalizesEntryPoints(t *testing.T) {
	user := &tele.User{ID: 5, Username: "buyer"}
	c := newContext(t, tele.Update{Message: &tele.Message{
		Text:   "/buy video_1",
		Sender: user,
		Chat:   &tele.Chat{ID: 500},
	}})

	req := buyRequest(c, "video_1", purchase.SourceCommand)
	assert.Equal(t, purchase.Request{
		UserID:  5,
		ChatID:  500,
		Handle:  "buyer",
		ItemKey: "video_1",
		Source:  purchase.SourceCommand,
	}, req)
}
