package purchase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/videoshop/core/telegram/keyboard"
	"github.com/m3rciful/videoshop/internal/dedupe"
	"github.com/m3rciful/videoshop/internal/menu"
	"github.com/m3rciful/videoshop/internal/store"
)

type memPersister struct {
	mu    sync.Mutex
	saves int
	fail  error
}

func (p *memPersister) Load(context.Context) (*store.Snapshot, error) { return store.NewSnapshot(), nil }

func (p *memPersister) Save(context.Context, *store.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saves++
	return nil
}

func (p *memPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

type sentText struct {
	chatID int64
	text   string
	rows   [][]keyboard.InlineBtn
}

type sentVideo struct {
	chatID       int64
	ref, caption string
}

type fakeMessenger struct {
	mu         sync.Mutex
	texts      []sentText
	invoices   []Invoice
	videos     []sentVideo
	invoiceErr error
	videoErr   error
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, rows ...[]keyboard.InlineBtn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{chatID: chatID, text: text, rows: rows})
	return nil
}

func (m *fakeMessenger) SendInvoice(_ context.Context, _ int64, inv Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invoiceErr != nil {
		return m.invoiceErr
	}
	m.invoices = append(m.invoices, inv)
	return nil
}

func (m *fakeMessenger) SendVideo(_ context.Context, chatID int64, ref, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoErr != nil {
		return m.videoErr
	}
	m.videos = append(m.videos, sentVideo{chatID: chatID, ref: ref, caption: caption})
	return nil
}

func (m *fakeMessenger) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1].text
}

const (
	buyer  int64 = 501
	chatID int64 = 501
)

type fixture struct {
	st  *store.Store
	p   *memPersister
	msg *fakeMessenger
	wf  *Workflow
	key string
}

func newFixture(t *testing.T, guard dedupe.Guard) *fixture {
	t.Helper()
	ctx := context.Background()
	p := &memPersister{}
	st, err := store.Open(ctx, p)
	require.NoError(t, err)
	key, err := st.AddItem(ctx, store.ItemFields{
		Title:       "Sunset timelapse",
		Description: "Forty minutes of coastline at dusk",
		Price:       50,
		Duration:    "40:00",
		ContentRef:  "BAACAgIAAxkBAAIC",
	})
	require.NoError(t, err)
	_, err = st.UpsertUser(ctx, buyer, "alice", false)
	require.NoError(t, err)

	msg := &fakeMessenger{}
	return &fixture{
		st:  st,
		p:   p,
		msg: msg,
		wf:  New(Options{Catalog: st, Messenger: msg, Guard: guard}),
		key: key,
	}
}

func (f *fixture) confirmation(amount int64, charge string) Confirmation {
	return Confirmation{UserID: buyer, ChatID: chatID, Handle: "alice", Payload: EncodePayload(f.key), Currency: CurrencyStars, Amount: amount, ChargeID: charge}
}

func TestRequestSendsStarsInvoice(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.st.UpdateItem(context.Background(), f.key, store.ItemFields{
		Title:       strings.Repeat("T", 40),
		Description: strings.Repeat("d", 300),
		Price:       75,
		ContentRef:  "ref",
	})
	require.NoError(t, err)
	saves := f.p.count()

	require.NoError(t, f.wf.Request(context.Background(), Request{UserID: buyer, ChatID: chatID, ItemKey: f.key, Source: SourceButton}))

	require.Len(t, f.msg.invoices, 1)
	inv := f.msg.invoices[0]
	assert.Equal(t, "buy_"+f.key, inv.Payload)
	assert.Equal(t, "XTR", inv.Currency)
	assert.Equal(t, int64(75), inv.Amount)
	assert.Equal(t, 255, len([]rune(inv.Description)))
	assert.Equal(t, 32, len([]rune(inv.Title)))
	assert.Equal(t, saves, f.p.count(), "requesting must not write the store")
}

func TestRequestRejectsUnknownAndOwnedItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.wf.Request(ctx, Request{UserID: buyer, ChatID: chatID, ItemKey: "video_99"})
	var pr *PolicyRejection
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, ReasonNotFound, pr.Reason)
	assert.Contains(t, f.msg.lastText(), "not found")

	_, err = f.st.RecordPurchase(ctx, buyer, f.key, 50)
	require.NoError(t, err)
	err = f.wf.Request(ctx, Request{UserID: buyer, ChatID: chatID, ItemKey: f.key, Source: SourceCommand})
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, ReasonAlreadyOwned, pr.Reason)
	last := f.msg.texts[len(f.msg.texts)-1]
	assert.Equal(t, [][]keyboard.InlineBtn{menu.MyPurchases()}, last.rows)
	assert.Empty(t, f.msg.invoices)
}

func TestRequestInvoiceFailureIsNotSurfacedAsPolicy(t *testing.T) {
	f := newFixture(t, nil)
	f.msg.invoiceErr = errors.New("bad request")
	err := f.wf.Request(context.Background(), Request{UserID: buyer, ChatID: chatID, ItemKey: f.key})
	require.Error(t, err)
	assert.False(t, Surfaced(err))
	assert.Contains(t, f.msg.lastText(), "try again later")
}

func TestPreCheckoutDecisions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d := f.wf.PreCheckout(ctx, PreCheckout{UserID: buyer, Payload: "buy_video_7", Amount: 10})
	assert.False(t, d.OK)
	assert.Equal(t, ReasonNotFound, d.Code)
	assert.Equal(t, "Video not found", d.Reason)

	d = f.wf.PreCheckout(ctx, PreCheckout{UserID: buyer, Payload: f.key})
	assert.Equal(t, ReasonInvalidPayload, d.Code)

	d = f.wf.PreCheckout(ctx, PreCheckout{UserID: buyer, Payload: EncodePayload(f.key), Amount: 50})
	assert.True(t, d.OK)

	_, err := f.st.RecordPurchase(ctx, buyer, f.key, 50)
	require.NoError(t, err)
	d = f.wf.PreCheckout(ctx, PreCheckout{UserID: buyer, Payload: EncodePayload(f.key), Amount: 50})
	assert.False(t, d.OK)
	assert.Equal(t, ReasonAlreadyOwned, d.Code)

	assert.Len(t, f.st.ListPurchases(buyer), 1, "pre-checkout never records")
}

func TestConfirmRecordsPaidAmountAndDelivers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.st.UpdateItem(ctx, f.key, store.ItemFields{Title: "Sunset timelapse", Description: "Forty minutes of coastline", Price: 90, ContentRef: "BAACAgIAAxkBAAIC"})
	require.NoError(t, err)

	require.NoError(t, f.wf.Confirm(ctx, f.confirmation(50, "ch_1")))

	purchases := f.st.ListPurchases(buyer)
	require.Len(t, purchases, 1)
	assert.Equal(t, int64(50), purchases[0].PricePaid, "the confirmed amount wins over the live price")
	require.Len(t, f.msg.videos, 1)
	assert.Equal(t, "BAACAgIAAxkBAAIC", f.msg.videos[0].ref)
	assert.Contains(t, f.msg.lastText(), "Thank you for your purchase")
}

func TestConfirmRejectsMalformedPayloadBeforeMutation(t *testing.T) {
	f := newFixture(t, nil)
	saves := f.p.count()
	c := f.confirmation(50, "ch_1")
	c.Payload = "video_" + f.key

	err := f.wf.Confirm(context.Background(), c)
	var pr *PolicyRejection
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, ReasonInvalidPayload, pr.Reason)
	assert.Equal(t, saves, f.p.count())
	assert.Empty(t, f.st.ListPurchases(buyer))
	assert.Empty(t, f.msg.videos)
}

func TestConcurrentConfirmationsRecordOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.wf.Confirm(ctx, f.confirmation(50, ""))
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.st.ListPurchases(buyer), 1)
	owned := 0
	for _, err := range errs {
		var pr *PolicyRejection
		if errors.As(err, &pr) && pr.Reason == ReasonAlreadyOwned {
			owned++
		}
	}
	assert.Equal(t, n-1, owned)
	assert.Len(t, f.msg.videos, 1)
}

func TestRepeatedChargeIsAcknowledgedWithoutRedelivery(t *testing.T) {
	f := newFixture(t, dedupe.NewMemory(0))
	ctx := context.Background()

	require.NoError(t, f.wf.Confirm(ctx, f.confirmation(50, "ch_1")))
	texts := len(f.msg.texts)
	require.NoError(t, f.wf.Confirm(ctx, f.confirmation(50, "ch_1")))

	assert.Len(t, f.st.ListPurchases(buyer), 1)
	assert.Len(t, f.msg.videos, 1)
	assert.Len(t, f.msg.texts, texts)
}

func TestConfirmForVanishedItemFailsSoftly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.st.RemoveItem(ctx, f.key)
	require.NoError(t, err)

	err = f.wf.Confirm(ctx, f.confirmation(50, "ch_1"))
	var pr *PolicyRejection
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, ReasonNotFound, pr.Reason)
	assert.Empty(t, f.st.ListPurchases(buyer))
	assert.Contains(t, f.msg.lastText(), "no longer available")
}

func TestConfirmStoreFailureIsRecordingFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.p.fail = errors.New("disk full")

	err := f.wf.Confirm(context.Background(), f.confirmation(50, "ch_1"))
	var rf *RecordingFailure
	require.ErrorAs(t, err, &rf)
	assert.True(t, Surfaced(err))
	assert.Empty(t, f.st.ListPurchases(buyer))
	assert.Empty(t, f.msg.videos)
	assert.Contains(t, f.msg.lastText(), "contact support")
}

func TestConfirmForUnknownBuyerIsRecordingFailure(t *testing.T) {
	f := newFixture(t, nil)
	c := f.confirmation(50, "ch_1")
	c.UserID = 999

	err := f.wf.Confirm(context.Background(), c)
	var rf *RecordingFailure
	require.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, err, ErrUnknownBuyer)
	_, known := f.st.GetUser(999)
	assert.False(t, known, "confirmation never creates users")
	assert.Empty(t, f.st.ListPurchases(999))
	assert.Empty(t, f.msg.videos)
	assert.Contains(t, f.msg.lastText(), "contact support")
}

func TestDeliverAfterRemovalKeepsRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.wf.Confirm(ctx, f.confirmation(50, "")))
	_, err := f.st.RemoveItem(ctx, f.key)
	require.NoError(t, err)

	err = f.wf.Deliver(ctx, buyer, chatID, f.key)
	var df *DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "unavailable", df.Reason)
	assert.True(t, f.st.HasPurchased(buyer, f.key))
	assert.Len(t, f.msg.videos, 1)
}

func TestDeliverRequiresOwnership(t *testing.T) {
	f := newFixture(t, nil)
	err := f.wf.Deliver(context.Background(), buyer, chatID, f.key)
	var df *DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "not purchased", df.Reason)
	assert.Empty(t, f.msg.videos)
}

func TestDeliverSendFailureHintsAtPurchases(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.wf.Confirm(ctx, f.confirmation(50, "")))
	f.msg.videoErr = errors.New("file reference expired")

	err := f.wf.Deliver(ctx, buyer, chatID, f.key)
	var df *DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Contains(t, f.msg.lastText(), "/mypurchases")
	assert.True(t, f.st.HasPurchased(buyer, f.key))
}
