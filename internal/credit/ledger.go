package credit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// UnlimitedBalance is the sentinel returned for identities exempt from credit
// accounting.
const UnlimitedBalance = 999999

// Account is one user's stored balance row.
type Account struct {
	UserID    string
	Email     string
	DailyUsed int
	ResetAt   time.Time
	Purchased int
	UpdatedAt time.Time

	// updatedAtRaw preserves the backend's own timestamp encoding so a
	// conditional update can match it byte for byte.
	updatedAtRaw string
}

// Store is the keyed table behind the ledger.
type Store interface {
	// Get returns the account row, or nil when the user has none yet.
	Get(ctx context.Context, userID string) (*Account, error)
	Insert(ctx context.Context, acc Account) error
	// Update writes acc only if the stored row is still the one described by
	// prev, and reports whether the write landed.
	Update(ctx context.Context, acc Account, prev Account) (bool, error)
}

// Config carries the ledger's operating parameters. Unlimited identities are
// injected here rather than compiled in.
type Config struct {
	DailyLimit       int
	GenerationCost   int
	UnlimitedEmails  []string
	UnlimitedUserIDs []string
}

// Ledger tracks a two-pool balance per user: a daily allowance that resets on
// UTC day boundaries and a non-expiring purchased pool. The daily reset is
// lazy: honored on every read, persisted only by the next deduction.
//
// The ledger fails open. If the backing store is absent or unreachable,
// reads report the full daily allowance and deductions succeed; generation
// must not block on a ledger outage.
type Ledger struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

func NewLedger(store Store, cfg Config, logger zerolog.Logger) *Ledger {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 8
	}
	if cfg.GenerationCost <= 0 {
		cfg.GenerationCost = 4
	}
	return &Ledger{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Unlimited reports whether the identity is exempt from credit accounting.
// An email match or a user id match suffices.
func (l *Ledger) Unlimited(userID, email string) bool {
	if userID == "" && email == "" {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range l.cfg.UnlimitedEmails {
		if email != "" && email == strings.ToLower(strings.TrimSpace(e)) {
			return true
		}
	}
	for _, id := range l.cfg.UnlimitedUserIDs {
		if userID != "" && userID == id {
			return true
		}
	}
	return false
}

// Balance returns the credits currently available to the user: the remaining
// daily allowance (after the lazy reset rule) plus the purchased pool.
func (l *Ledger) Balance(ctx context.Context, userID, email string) int {
	if l.Unlimited(userID, email) {
		return UnlimitedBalance
	}
	if l.store == nil {
		return l.cfg.DailyLimit
	}

	acc, err := l.store.Get(ctx, userID)
	if err != nil {
		l.logger.Warn().Err(err).Str("user_id", userID).Msg("credit: balance read failed, failing open")
		return l.cfg.DailyLimit
	}
	if acc == nil {
		return l.cfg.DailyLimit
	}

	dailyUsed := l.effectiveDailyUsed(acc)
	remaining := l.cfg.DailyLimit - dailyUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining + acc.Purchased
}

// Deduct withdraws cost credits (the configured generation cost when cost is
// zero), drawing the daily pool down first and spilling into the purchased
// pool. It returns false, without mutating anything, when the combined
// balance cannot cover the cost.
//
// The write is a conditional update keyed on the row read at the start of the
// cycle; a concurrent deduction forces a re-read instead of clobbering it.
func (l *Ledger) Deduct(ctx context.Context, userID, email string, cost int) bool {
	if cost <= 0 {
		cost = l.cfg.GenerationCost
	}
	if l.Unlimited(userID, email) {
		return true
	}
	if l.store == nil {
		return true
	}

	now := l.now().UTC()
	for attempt := 0; attempt < 3; attempt++ {
		acc, err := l.store.Get(ctx, userID)
		if err != nil {
			l.logger.Warn().Err(err).Str("user_id", userID).Msg("credit: deduct read failed, failing open")
			return true
		}

		if acc == nil {
			// First-ever deduction: the fresh row starts with the cost
			// already consumed.
			err := l.store.Insert(ctx, Account{
				UserID:    userID,
				Email:     email,
				DailyUsed: cost,
				ResetAt:   now,
				Purchased: 0,
				UpdatedAt: now,
			})
			if err != nil {
				l.logger.Warn().Err(err).Str("user_id", userID).Msg("credit: deduct insert failed, failing open")
			}
			return true
		}

		dailyUsed := l.effectiveDailyUsed(acc)
		if (l.cfg.DailyLimit-dailyUsed)+acc.Purchased < cost {
			return false
		}

		next := *acc
		next.Email = email
		next.ResetAt = now
		next.UpdatedAt = now
		if dailyUsed+cost <= l.cfg.DailyLimit {
			next.DailyUsed = dailyUsed + cost
		} else {
			overflow := dailyUsed + cost - l.cfg.DailyLimit
			next.DailyUsed = l.cfg.DailyLimit
			next.Purchased = acc.Purchased - overflow
			if next.Purchased < 0 {
				next.Purchased = 0
			}
		}

		ok, err := l.store.Update(ctx, next, *acc)
		if err != nil {
			l.logger.Warn().Err(err).Str("user_id", userID).Msg("credit: deduct write failed, failing open")
			return true
		}
		if ok {
			return true
		}
		// Lost the race against a concurrent deduction; re-read and retry.
	}

	l.logger.Warn().Str("user_id", userID).Msg("credit: deduct retries exhausted")
	return false
}

// effectiveDailyUsed applies the lazy reset rule: a row last touched on an
// earlier UTC calendar day reads as unused.
func (l *Ledger) effectiveDailyUsed(acc *Account) int {
	if acc.ResetAt.IsZero() {
		return acc.DailyUsed
	}
	now := l.now().UTC()
	reset := acc.ResetAt.UTC()
	ny, nm, nd := now.Date()
	ry, rm, rd := reset.Date()
	if time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)) {
		return 0
	}
	return acc.DailyUsed
}
