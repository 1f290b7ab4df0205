package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type Reason = model.LedgerReason

const (
	ReasonInitialAllocation = model.LedgerReasonInitialAllocation
	ReasonChatTurn          = model.LedgerReasonChatTurn
	ReasonAdminAdjustment   = model.LedgerReasonAdminAdjustment
)

var (
	ErrInsufficientCredits = errors.New("credit ledger: insufficient credits")
	ErrTenantNotFound      = errors.New("credit ledger: organization not found")
	ErrInvalidAmount       = errors.New("credit ledger: invalid amount")
	ErrStorageFailure      = errors.New("credit ledger: storage failure")
)

// Lost compare-and-swap races are retried with jittered exponential backoff
// until the write lands, the context ends, or maxContentionWait passes.
const (
	retryInitialInterval = 5 * time.Millisecond
	retryMaxInterval     = 200 * time.Millisecond
	maxContentionWait    = 15 * time.Second
)

// Entry describes one balance change.
type Entry struct {
	OrganizationID string
	Amount         int64
	Reason         Reason
	Note           string
	ConversationID string
	CreatedBy      *string
}

// Ledger keeps each organization's cached balance equal to the sum of its
// ledger entries and never lets it drop below zero.
type Ledger struct {
	repo       Repository
	now        func() time.Time
	newID      func() string
	newBackOff func() backoff.BackOff
}

func New(db *database.Database) *Ledger {
	return NewWithRepository(NewDynamoRepository(db), nil)
}

func NewWithRepository(repo Repository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		repo:       repo,
		now:        now,
		newID:      uuid.NewString,
		newBackOff: contentionBackOff,
	}
}

func contentionBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = maxContentionWait
	return b
}

// Spend debits amount credits and returns the new balance.
func (l *Ledger) Spend(ctx context.Context, organizationID string, amount int64, reason Reason, conversationID string, createdBy *string) (int64, error) {
	if amount <= 0 {
		observe(reason, "invalid")
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, Entry{
		OrganizationID: organizationID,
		Amount:         -amount,
		Reason:         reason,
		ConversationID: conversationID,
		CreatedBy:      createdBy,
	})
}

// Adjust applies a signed admin correction. Negative deltas that would
// overdraw the balance fail with ErrInsufficientCredits.
func (l *Ledger) Adjust(ctx context.Context, organizationID string, delta int64, note string, createdBy *string) (int64, error) {
	if delta == 0 {
		observe(ReasonAdminAdjustment, "invalid")
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, Entry{
		OrganizationID: organizationID,
		Amount:         delta,
		Reason:         ReasonAdminAdjustment,
		Note:           note,
		CreatedBy:      createdBy,
	})
}

// Allocate grants the starting balance of a new organization.
func (l *Ledger) Allocate(ctx context.Context, organizationID string, amount int64, createdBy *string) (int64, error) {
	if amount <= 0 {
		observe(ReasonInitialAllocation, "invalid")
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, Entry{
		OrganizationID: organizationID,
		Amount:         amount,
		Reason:         ReasonInitialAllocation,
		CreatedBy:      createdBy,
	})
}

func (l *Ledger) Balance(ctx context.Context, organizationID string) (int64, error) {
	balance, err := l.repo.GetBalance(ctx, organizationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrTenantNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return balance, nil
}

func (l *Ledger) Entries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error) {
	entries, err := l.repo.ListEntries(ctx, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return entries, nil
}

func (l *Ledger) apply(ctx context.Context, entry Entry) (int64, error) {
	if entry.OrganizationID == "" {
		observe(entry.Reason, "not_found")
		return 0, ErrTenantNotFound
	}

	var balance int64
	attempt := func() error {
		current, err := l.Balance(ctx, entry.OrganizationID)
		if err != nil {
			return backoff.Permanent(err)
		}

		next := current + entry.Amount
		if next < 0 {
			return backoff.Permanent(ErrInsufficientCredits)
		}

		id := l.newID()
		createdAt := model.FormatTimestamp(l.now())
		item := model.CreditLedgerEntryItem{
			OrganizationID: entry.OrganizationID,
			EntryKey:       model.SortKey(createdAt, id),
			EntryID:        id,
			Amount:         entry.Amount,
			BalanceAfter:   next,
			Reason:         entry.Reason,
			Note:           entry.Note,
			ConversationID: entry.ConversationID,
			CreatedBy:      entry.CreatedBy,
			CreatedAt:      createdAt,
		}

		err = l.repo.ApplyEntry(ctx, current, item)
		switch {
		case err == nil:
			balance = next
			return nil
		case errors.Is(err, ErrBalanceChanged):
			ledgerRetries.Inc()
			return err
		case errors.Is(err, ErrNotFound):
			return backoff.Permanent(ErrTenantNotFound)
		default:
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrStorageFailure, err))
		}
	}

	err := backoff.Retry(attempt, backoff.WithContext(l.newBackOff(), ctx))
	switch {
	case err == nil:
		observe(entry.Reason, "ok")
		return balance, nil
	case errors.Is(err, ErrInsufficientCredits):
		observe(entry.Reason, "insufficient")
		return 0, err
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrStorageFailure):
		observe(entry.Reason, outcomeOf(err))
		return 0, err
	default:
		// Still losing the race when the budget or the context ran out.
		observe(entry.Reason, "storage_failure")
		return 0, fmt.Errorf("%w: balance kept changing: %v", ErrStorageFailure, err)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrTenantNotFound) {
		return "not_found"
	}
	return "storage_failure"
}
