package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/credit"
	"roleplay-training-backend/internal/service/message"
)

type storedMessages struct {
	mu    sync.Mutex
	items []model.MessageItem
}

func (m *storedMessages) PutMessage(ctx context.Context, item model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *storedMessages) ListMessages(ctx context.Context, conversationID string, newestFirst bool, limit int, roles []model.MessageRole) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MessageItem
	for _, item := range m.items {
		if item.ConversationID == conversationID {
			out = append(out, item)
		}
	}
	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *storedMessages) DeleteMessages(ctx context.Context, conversationID string) error {
	return nil
}

func (m *storedMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type balances struct {
	mu      sync.Mutex
	balance int64
	entries []model.CreditLedgerEntryItem
}

func (b *balances) GetBalance(ctx context.Context, organizationID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

func (b *balances) ApplyEntry(ctx context.Context, expected int64, entry model.CreditLedgerEntryItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balance != expected {
		return credit.ErrBalanceChanged
	}
	b.balance = entry.BalanceAfter
	b.entries = append(b.entries, entry)
	return nil
}

func (b *balances) ListEntries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.CreditLedgerEntryItem(nil), b.entries...), nil
}

func replyWith(t *testing.T, content string) func(w http.ResponseWriter) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"assistantMessage": content})
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func TestSendTurnStoresLongMultibyteReply(t *testing.T) {
	f := newFixture(t)
	stored := &storedMessages{}
	ledgerRepo := &balances{balance: 5}
	f.useStores(message.NewWithRepository(stored, nil), credit.NewWithRepository(ledgerRepo, nil))

	long := strings.Repeat("é", 12000)
	f.reply = replyWith(t, long)

	result, err := f.svc.SendTurn(context.Background(), member(), TurnRequest{ConversationID: convID, UserMessage: "hi"})
	if err != nil {
		t.Fatalf("SendTurn returned error: %v", err)
	}
	if result.AssistantMessage != long || result.CreditsBalance != 4 {
		t.Fatalf("unexpected result: balance=%d len=%d", result.CreditsBalance, len(result.AssistantMessage))
	}
	if stored.count() != 2 {
		t.Fatalf("expected user and assistant messages stored, got %d", stored.count())
	}
	if stored.items[1].Content != long {
		t.Fatalf("assistant reply stored truncated: %d bytes", len(stored.items[1].Content))
	}
}

func TestSendTurnOversizedReplyIsNotCharged(t *testing.T) {
	f := newFixture(t)
	f.reply = replyWith(t, strings.Repeat("a", message.MaxContentBytes+1))

	_, err := f.svc.SendTurn(context.Background(), member(), TurnRequest{ConversationID: convID, UserMessage: "hi"})
	expectCode(t, err, apperror.CodeUpstream)
	if f.ledger.calls != 0 {
		t.Fatalf("a reply that cannot be stored must not be charged, got %d spends", f.ledger.calls)
	}
}

func TestSendTurnStoresDebugAsDocument(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SendTurn(context.Background(), member(), TurnRequest{ConversationID: convID, UserMessage: "hi"}); err != nil {
		t.Fatalf("SendTurn returned error: %v", err)
	}
	assistantMsg := f.messages.items[len(f.messages.items)-1]
	debug, ok := assistantMsg.Metadata["debug"].(map[string]interface{})
	if !ok {
		t.Fatalf("debug metadata must be a map, got %T", assistantMsg.Metadata["debug"])
	}
	if debug["node"] != "agent" {
		t.Fatalf("unexpected debug metadata %v", debug)
	}
}

func TestConcurrentTurnsOnLastCredit(t *testing.T) {
	f := newFixture(t)
	org := f.repo.organizations["org-1"]
	org.CreditsBalance = 1
	f.repo.organizations["org-1"] = org
	ledgerRepo := &balances{balance: 1}
	f.useStores(f.messages, credit.NewWithRepository(ledgerRepo, nil))

	var wg sync.WaitGroup
	results := make([]TurnResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.SendTurn(context.Background(), member(), TurnRequest{ConversationID: convID, UserMessage: "hi"})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for i := range errs {
		if errs[i] == nil {
			succeeded++
			if results[i].CreditsBalance != 0 {
				t.Fatalf("winning turn must report balance 0, got %d", results[i].CreditsBalance)
			}
			continue
		}
		appErr := expectCode(t, errs[i], apperror.CodePaymentRequired)
		if appErr.CreditsBalance == nil || *appErr.CreditsBalance != 0 {
			t.Fatalf("expected creditsBalance 0 on 402, got %v", appErr.CreditsBalance)
		}
		rejected++
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected one success and one payment_required, got %d and %d", succeeded, rejected)
	}
	if ledgerRepo.balance != 0 || len(ledgerRepo.entries) != 1 {
		t.Fatalf("ledger must hold exactly one spend, balance=%d entries=%d", ledgerRepo.balance, len(ledgerRepo.entries))
	}
}
