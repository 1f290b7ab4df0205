package credit

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"roleplay-training-backend/internal/model"
)

type memoryRepository struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  map[string][]model.CreditLedgerEntryItem
	// interfere runs once before the next ApplyEntry compare, to simulate
	// a concurrent writer.
	interfere func()
	// yield widens the read-to-write gap so concurrent spends collide.
	yield bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		balances: make(map[string]int64),
		entries:  make(map[string][]model.CreditLedgerEntryItem),
	}
}

func (m *memoryRepository) GetBalance(ctx context.Context, organizationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[organizationID]
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (m *memoryRepository) ApplyEntry(ctx context.Context, expected int64, entry model.CreditLedgerEntryItem) error {
	m.mu.Lock()
	hook := m.interfere
	m.interfere = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if m.yield {
		runtime.Gosched()
		time.Sleep(50 * time.Microsecond)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[entry.OrganizationID]
	if !ok || current != expected {
		return ErrBalanceChanged
	}
	m.balances[entry.OrganizationID] = entry.BalanceAfter
	m.entries[entry.OrganizationID] = append(m.entries[entry.OrganizationID], entry)
	return nil
}

func (m *memoryRepository) ListEntries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[organizationID]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]model.CreditLedgerEntryItem(nil), entries...), nil
}

func (m *memoryRepository) sum(organizationID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, entry := range m.entries[organizationID] {
		total += entry.Amount
	}
	return total
}

func newTestLedger() (*Ledger, *memoryRepository) {
	repo := newMemoryRepository()
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewWithRepository(repo, now), repo
}

func TestAllocateThenSpend(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 0
	ctx := context.Background()

	balance, err := ledger.Allocate(ctx, "org-1", 5, nil)
	if err != nil || balance != 5 {
		t.Fatalf("Allocate = %d, %v; want 5, nil", balance, err)
	}

	balance, err = ledger.Spend(ctx, "org-1", 1, ReasonChatTurn, "conv-1", nil)
	if err != nil || balance != 4 {
		t.Fatalf("Spend = %d, %v; want 4, nil", balance, err)
	}

	if got := repo.sum("org-1"); got != 4 {
		t.Fatalf("ledger sum = %d; want 4", got)
	}
	entries, _ := ledger.Entries(ctx, "org-1", 10)
	if len(entries) != 2 || entries[1].Reason != ReasonChatTurn || entries[1].ConversationID != "conv-1" || entries[1].BalanceAfter != 4 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSpendRejectsOverdraft(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 0

	_, err := ledger.Spend(context.Background(), "org-1", 1, ReasonChatTurn, "conv-1", nil)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if len(repo.entries["org-1"]) != 0 {
		t.Fatalf("rejected spend must not write an entry")
	}
}

func TestSpendValidation(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 3
	ctx := context.Background()

	if _, err := ledger.Spend(ctx, "org-1", 0, ReasonChatTurn, "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := ledger.Spend(ctx, "org-1", -2, ReasonChatTurn, "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := ledger.Spend(ctx, "missing", 1, ReasonChatTurn, "", nil); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
	if _, err := ledger.Adjust(ctx, "org-1", 0, "noop", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero adjust, got %v", err)
	}
}

func TestAdjustCannotOverdraw(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 3

	if _, err := ledger.Adjust(context.Background(), "org-1", -4, "refund", nil); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err := ledger.Adjust(context.Background(), "org-1", -3, "refund", nil)
	if err != nil || balance != 0 {
		t.Fatalf("Adjust = %d, %v; want 0, nil", balance, err)
	}
}

func TestSpendRetriesAfterConcurrentWrite(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 2
	repo.interfere = func() {
		repo.mu.Lock()
		repo.balances["org-1"] = 1
		repo.entries["org-1"] = append(repo.entries["org-1"], model.CreditLedgerEntryItem{OrganizationID: "org-1", Amount: -1})
		repo.mu.Unlock()
	}

	balance, err := ledger.Spend(context.Background(), "org-1", 1, ReasonChatTurn, "conv-1", nil)
	if err != nil || balance != 0 {
		t.Fatalf("Spend = %d, %v; want 0, nil", balance, err)
	}
}

func TestConcurrentSpendOnLastCredit(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 1

	const workers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Spend(context.Background(), "org-1", 1, ReasonChatTurn, "conv-1", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientCredits):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || insufficient != workers-1 {
		t.Fatalf("successes=%d insufficient=%d; want 1 and %d", successes, insufficient, workers-1)
	}
	if repo.balances["org-1"] != 0 {
		t.Fatalf("balance = %d; want 0", repo.balances["org-1"])
	}
}

func TestManyConcurrentSpendsAllLand(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 1000
	repo.yield = true

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Spend(context.Background(), "org-1", 1, ReasonChatTurn, "conv-1", nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Spend with ample balance failed: %v", err)
	}
	if got := repo.balances["org-1"]; got != 1000-workers {
		t.Fatalf("balance = %d; want %d", got, 1000-workers)
	}
	if got := repo.sum("org-1"); got != -workers {
		t.Fatalf("ledger sum = %d; want %d", got, -workers)
	}

	seen := make(map[int64]bool, workers)
	for _, entry := range repo.entries["org-1"] {
		if seen[entry.BalanceAfter] {
			t.Fatalf("balanceAfter %d recorded twice", entry.BalanceAfter)
		}
		seen[entry.BalanceAfter] = true
	}
}

func TestSpendGivesUpWhenContextEnds(t *testing.T) {
	ledger, repo := newTestLedger()
	repo.balances["org-1"] = 10

	ctx, cancel := context.WithCancel(context.Background())
	repo.interfere = func() {
		cancel()
		repo.mu.Lock()
		repo.balances["org-1"] = 9
		repo.mu.Unlock()
	}

	_, err := ledger.Spend(ctx, "org-1", 1, ReasonChatTurn, "conv-1", nil)
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure after cancellation, got %v", err)
	}
	if len(repo.entries["org-1"]) != 0 {
		t.Fatalf("no entry should be written, got %d", len(repo.entries["org-1"]))
	}
}
