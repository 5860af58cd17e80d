package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/bus"
	"github.com/vihalabs/giftflow/internal/store"
)

const (
	testConv     = "9188@c.us"
	testOperator = "9100@c.us"
)

type sentMsg struct {
	kind    string // "text" or "image"
	chatID  string
	text    string
	url     string
	caption string
}

// fakeTransport records sends in order. failImages simulates a bridge that
// cannot deliver media.
type fakeTransport struct {
	mu         sync.Mutex
	sends      []sentMsg
	failImages bool
}

func (f *fakeTransport) SendText(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMsg{kind: "text", chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) SendImage(_ context.Context, chatID, url, caption string) error {
	if f.failImages {
		return context.DeadlineExceeded
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMsg{kind: "image", chatID: chatID, url: url, caption: caption})
	return nil
}

func (f *fakeTransport) all() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sends...)
}

func (f *fakeTransport) to(chatID string) []sentMsg {
	var out []sentMsg
	for _, s := range f.all() {
		if s.chatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// fakeBackend serves the decision-backend API from a canned handler and
// counts /chat and /lock_conversation hits.
type fakeBackend struct {
	srv       *httptest.Server
	mu        sync.Mutex
	chats     []backend.ChatRequest
	locks     []string
	chatReply func(req backend.ChatRequest) (int, backend.ChatResponse)
}

func newFakeBackend(t *testing.T, chatReply func(req backend.ChatRequest) (int, backend.ChatResponse)) *fakeBackend {
	t.Helper()
	b := &fakeBackend{chatReply: chatReply}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.chats = append(b.chats, req)
		b.mu.Unlock()
		code, resp := b.chatReply(req)
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/lock_conversation", func(w http.ResponseWriter, r *http.Request) {
		var req backend.LockRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.locks = append(b.locks, req.UserID)
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "locked"})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) chatCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chats)
}

func (b *fakeBackend) lockedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.locks...)
}

func replyWith(resp backend.ChatResponse) func(backend.ChatRequest) (int, backend.ChatResponse) {
	return func(backend.ChatRequest) (int, backend.ChatResponse) { return http.StatusOK, resp }
}

func newTestResponder(t *testing.T, fb *fakeBackend, transport *fakeTransport) (*Responder, *store.Store) {
	t.Helper()
	st, err := store.New(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var client *backend.Client
	if fb != nil {
		client = backend.NewClient(fb.srv.URL)
	}
	deliver := NewDeliverer(transport, 100000, time.Millisecond, time.Millisecond)
	r := New(context.Background(), st, client, deliver, testOperator, 20*time.Millisecond, 10*time.Millisecond, fb != nil)
	t.Cleanup(r.Stop)
	return r, st
}

func waitSends(t *testing.T, transport *fakeTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(transport.all()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d sends, got %d: %+v", n, len(transport.all()), transport.all())
}

// TestTurn_PlainReply verifies the default path: one text reply to the
// customer, nothing to the operator.
func TestTurn_PlainReply(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  "How many pieces do you need?",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "need diwali gifts")

	sends := transport.all()
	if len(sends) != 1 {
		t.Fatalf("expected 1 send, got %+v", sends)
	}
	if sends[0].chatID != testConv || sends[0].text != "How many pieces do you need?" {
		t.Errorf("unexpected send: %+v", sends[0])
	}
}

// TestTurn_EmptyReplyNothingSent verifies an empty backend reply produces no
// message at all.
func TestTurn_EmptyReplyNothingSent(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  "   ",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "hello")

	if sends := transport.all(); len(sends) != 0 {
		t.Errorf("expected no sends, got %+v", sends)
	}
}

// TestShowcase_FullSequence verifies the three-product showcase: summary,
// three captioned images in order, closing message, then exactly one
// operator escalation.
func TestShowcase_FullSequence(t *testing.T) {
	qty := 200
	budget := 500
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status:              backend.StatusSuccess,
		Reply:               backend.ShowcaseMarker,
		NeedsHandoff:        true,
		RequirementsSummary: "Here are options for 200 pieces within ₹500:",
		CustomerReqs:        &backend.Requirements{Quantity: &qty, BudgetPerPiece: &budget},
		HandoffReason:       "products_shown",
		Products: []backend.Product{
			{Name: "Brass Diya Set", Price: 450, ImageURL: "https://cdn/diya.jpg"},
			{Name: "Scented Candle Box", Price: 380, ImageURL: "https://cdn/candle.jpg"},
			{Name: "Dry Fruit Tray", Price: 490, ImageURL: "https://cdn/tray.jpg"},
		},
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "200 pieces, 500 budget")

	customer := transport.to(testConv)
	if len(customer) != 5 {
		t.Fatalf("expected 5 customer sends, got %+v", customer)
	}
	if customer[0].kind != "text" || !strings.Contains(customer[0].text, "200 pieces") {
		t.Errorf("first send should be the summary: %+v", customer[0])
	}
	wantCaptions := []string{
		"1. Brass Diya Set\n₹450/piece",
		"2. Scented Candle Box\n₹380/piece",
		"3. Dry Fruit Tray\n₹490/piece",
	}
	for i, want := range wantCaptions {
		got := customer[i+1]
		if got.kind != "image" || got.caption != want {
			t.Errorf("product %d: expected image caption %q, got %+v", i+1, want, got)
		}
	}
	if customer[4].kind != "text" || customer[4].text != closingText {
		t.Errorf("last customer send should be closing text: %+v", customer[4])
	}

	operator := transport.to(testOperator)
	if len(operator) != 1 {
		t.Fatalf("expected exactly 1 escalation, got %+v", operator)
	}
	notice := operator[0].text
	for _, want := range []string{escalationHeader, testConv, "products_shown", "Quantity: 200 pieces", "Budget: ₹500/piece"} {
		if !strings.Contains(notice, want) {
			t.Errorf("escalation missing %q:\n%s", want, notice)
		}
	}
}

// TestShowcase_EmptyProducts verifies the marker with no products sends the
// checking message and does not escalate.
func TestShowcase_EmptyProducts(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  backend.ShowcaseMarker,
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "anything under 100?")

	customer := transport.to(testConv)
	if len(customer) != 1 || customer[0].text != checkingText {
		t.Errorf("expected only the checking message, got %+v", customer)
	}
	if operator := transport.to(testOperator); len(operator) != 0 {
		t.Errorf("empty showcase must not escalate, got %+v", operator)
	}
}

// TestShowcase_ImageFailureDegradesToText verifies a failed image send still
// delivers the caption as text.
func TestShowcase_ImageFailureDegradesToText(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  backend.ShowcaseMarker,
		Products: []backend.Product{
			{Name: "Brass Diya Set", Price: 450, ImageURL: "https://cdn/diya.jpg"},
		},
	}))
	transport := &fakeTransport{failImages: true}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "show me")

	customer := transport.to(testConv)
	if len(customer) != 2 {
		t.Fatalf("expected caption fallback + closing, got %+v", customer)
	}
	if customer[0].kind != "text" || !strings.Contains(customer[0].text, "Brass Diya Set") || !strings.Contains(customer[0].text, imageFallbackNote) {
		t.Errorf("expected caption fallback text, got %+v", customer[0])
	}
}

// TestHandoff_ReplyThenEscalation verifies the handoff path sends the final
// reply and escalates once.
func TestHandoff_ReplyThenEscalation(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status:        backend.StatusSuccess,
		Reply:         "Our team will call you shortly.",
		NeedsHandoff:  true,
		HandoffReason: "unhandleable_query",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "can you do custom engraving?")

	customer := transport.to(testConv)
	if len(customer) != 1 || customer[0].text != "Our team will call you shortly." {
		t.Errorf("expected handoff reply, got %+v", customer)
	}
	operator := transport.to(testOperator)
	if len(operator) != 1 || !strings.Contains(operator[0].text, "unhandleable_query") {
		t.Errorf("expected one escalation with reason, got %+v", operator)
	}
}

// TestHandoff_SilentWhenNoReply verifies a handoff without a reply only
// notifies the operator.
func TestHandoff_SilentWhenNoReply(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status:        backend.StatusSuccess,
		NeedsHandoff:  true,
		HandoffReason: "image_sent",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, backend.ImageMarker)

	if customer := transport.to(testConv); len(customer) != 0 {
		t.Errorf("silent handoff must not message the customer, got %+v", customer)
	}
	if operator := transport.to(testOperator); len(operator) != 1 {
		t.Errorf("expected one escalation, got %+v", operator)
	}
}

// TestFailure_FallbackAndOneShotEscalation verifies repeated backend
// failures keep sending the fallback but alert the operator only once.
func TestFailure_FallbackAndOneShotEscalation(t *testing.T) {
	fb := newFakeBackend(t, func(backend.ChatRequest) (int, backend.ChatResponse) {
		return http.StatusInternalServerError, backend.ChatResponse{}
	})
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "first question")
	r.handleTurn(testConv, "second question")

	customer := transport.to(testConv)
	if len(customer) != 2 || customer[0].text != failureText || customer[1].text != failureText {
		t.Errorf("expected 2 fallback messages, got %+v", customer)
	}
	operator := transport.to(testOperator)
	if len(operator) != 1 {
		t.Fatalf("expected exactly 1 escalation across failures, got %+v", operator)
	}
	if !strings.Contains(operator[0].text, "first question") {
		t.Errorf("escalation should carry the failing turn:\n%s", operator[0].text)
	}
}

// TestOperator_LocksConversation verifies an operator message locks the
// conversation, notifies the backend, and silences all later traffic.
func TestOperator_LocksConversation(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  "should never go out",
	}))
	transport := &fakeTransport{}
	r, st := newTestResponder(t, fb, transport)

	ctx := context.Background()
	r.HandleInbound(ctx, bus.InboundMessage{
		ConversationID:     testConv,
		ChatID:             testConv,
		Text:               "I'll take it from here",
		OperatorOriginated: true,
	})

	if !st.IsLocked(testConv) {
		t.Fatal("operator message should lock the conversation")
	}
	if ids := fb.lockedIDs(); len(ids) != 1 || ids[0] != testConv {
		t.Errorf("backend lock notify missing: %v", ids)
	}

	// Customer keeps typing: nothing may reach the backend or the transport.
	r.HandleInbound(ctx, bus.InboundMessage{ConversationID: testConv, ChatID: testConv, Text: "hello?"})
	time.Sleep(100 * time.Millisecond)

	if n := fb.chatCount(); n != 0 {
		t.Errorf("locked conversation must not call the backend, got %d calls", n)
	}
	if sends := transport.all(); len(sends) != 0 {
		t.Errorf("locked conversation must stay silent, got %+v", sends)
	}
}

// TestLock_DiscardsAggregatingTurn verifies a turn still in its debounce
// window dies when the operator takes over mid-window.
func TestLock_DiscardsAggregatingTurn(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  "should never go out",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	ctx := context.Background()
	r.HandleInbound(ctx, bus.InboundMessage{ConversationID: testConv, ChatID: testConv, Text: "I need gifts"})
	r.HandleInbound(ctx, bus.InboundMessage{
		ConversationID:     testConv,
		ChatID:             testConv,
		Text:               "on it",
		OperatorOriginated: true,
	})

	time.Sleep(100 * time.Millisecond)
	if n := fb.chatCount(); n != 0 {
		t.Errorf("aggregated turn should be discarded after lock, got %d backend calls", n)
	}
}

// TestInbound_DebounceMergesBurst verifies the end-to-end path: a burst of
// messages becomes one backend call with fragments joined in order.
func TestInbound_DebounceMergesBurst(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status: backend.StatusSuccess,
		Reply:  "got it",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	ctx := context.Background()
	r.HandleInbound(ctx, bus.InboundMessage{ConversationID: testConv, ChatID: testConv, Text: "Hi"})
	r.HandleInbound(ctx, bus.InboundMessage{ConversationID: testConv, ChatID: testConv, Text: "need 200 gifts"})
	r.HandleInbound(ctx, bus.InboundMessage{ConversationID: testConv, ChatID: testConv, Text: "budget 500"})

	waitSends(t, transport, 1)
	if n := fb.chatCount(); n != 1 {
		t.Fatalf("expected 1 backend call for the burst, got %d", n)
	}
	fb.mu.Lock()
	msg := fb.chats[0].Message
	fb.mu.Unlock()
	if msg != "Hi\nneed 200 gifts\nbudget 500" {
		t.Errorf("fragments not merged in order: %q", msg)
	}
}

// TestInbound_ImageForwardsMarker verifies an inbound image turns into the
// image marker plus caption for the backend.
func TestInbound_ImageForwardsMarker(t *testing.T) {
	fb := newFakeBackend(t, replyWith(backend.ChatResponse{
		Status:        backend.StatusSuccess,
		NeedsHandoff:  true,
		HandoffReason: "image_sent",
	}))
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, fb, transport)

	r.HandleInbound(context.Background(), bus.InboundMessage{
		ConversationID: testConv,
		ChatID:         testConv,
		ImagePresent:   true,
		Caption:        "something like this",
	})

	waitSends(t, transport, 1) // the escalation
	fb.mu.Lock()
	msg := fb.chats[0].Message
	fb.mu.Unlock()
	if msg != backend.ImageMarker+"\nsomething like this" {
		t.Errorf("image marker not forwarded: %q", msg)
	}
}

// TestBackendDisabled verifies turns are dropped without any send when the
// backend feature flag is off.
func TestBackendDisabled(t *testing.T) {
	transport := &fakeTransport{}
	r, _ := newTestResponder(t, nil, transport)

	r.handleTurn(testConv, "hello")

	if sends := transport.all(); len(sends) != 0 {
		t.Errorf("disabled backend must not send, got %+v", sends)
	}
}

// TestUnlock_AllowsFreshEscalation verifies the admin reset starts a new
// episode: the next failure may alert the operator again.
func TestUnlock_AllowsFreshEscalation(t *testing.T) {
	fb := newFakeBackend(t, func(backend.ChatRequest) (int, backend.ChatResponse) {
		return http.StatusInternalServerError, backend.ChatResponse{}
	})
	transport := &fakeTransport{}
	r, st := newTestResponder(t, fb, transport)

	r.handleTurn(testConv, "q1")
	st.Lock(testConv, "operator")
	st.Unlock(testConv)
	r.handleTurn(testConv, "q2")

	if operator := transport.to(testOperator); len(operator) != 2 {
		t.Errorf("expected fresh escalation after unlock, got %+v", operator)
	}
}
