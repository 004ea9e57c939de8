// Package storagetest provides a map-backed storage.Store for service tests.
// ExecTx snapshots state and restores it when the callback fails, matching
// the rollback semantics tests rely on.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/sadman-arif/consultpay/internal/availability"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/storage"
)

type state struct {
	bookings     map[string]model.Booking
	history      []model.BookingHistory
	experts      map[string]model.Expert
	wallets      map[string]model.Wallet
	walletTxs    []model.WalletTransaction
	withdrawals  map[string]model.WithdrawalRequest
	plans        map[string]model.PaymentPlan
	installments map[string]model.Installment
	events       []outbox.Event
	provider     map[string]struct{}
	slots        map[string][]model.AvailabilitySlot
	unavailable  map[string]map[string]model.UnavailableDate
}

func newState() state {
	return state{
		bookings:     map[string]model.Booking{},
		experts:      map[string]model.Expert{},
		wallets:      map[string]model.Wallet{},
		withdrawals:  map[string]model.WithdrawalRequest{},
		plans:        map[string]model.PaymentPlan{},
		installments: map[string]model.Installment{},
		provider:     map[string]struct{}{},
		slots:        map[string][]model.AvailabilitySlot{},
		unavailable:  map[string]map[string]model.UnavailableDate{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	c.history = append(c.history, s.history...)
	for k, v := range s.experts {
		c.experts[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	c.walletTxs = append(c.walletTxs, s.walletTxs...)
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	c.events = append(c.events, s.events...)
	for k := range s.provider {
		c.provider[k] = struct{}{}
	}
	for k, v := range s.slots {
		c.slots[k] = append([]model.AvailabilitySlot(nil), v...)
	}
	for k, v := range s.unavailable {
		m := map[string]model.UnavailableDate{}
		for d, u := range v {
			m[d] = u
		}
		c.unavailable[k] = m
	}
	return c
}

// Memory is an in-process storage.Store. Safe for concurrent use, though
// ExecTx serializes callers the way row locks would.
type Memory struct {
	mu sync.Mutex
	st state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// Seed helpers. Call before handing the store to a service.

func (m *Memory) SeedExpert(e model.Expert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.experts[e.ID] = e
}

func (m *Memory) SeedBooking(b model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.bookings[b.ID] = b
}

func (m *Memory) SeedWallet(w model.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.wallets[w.ExpertID] = w
}

func (m *Memory) SeedWalletTransaction(t model.WalletTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.walletTxs = append(m.st.walletTxs, t)
}

func (m *Memory) SeedSlots(expertID string, slots ...model.AvailabilitySlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.slots[expertID] = append(m.st.slots[expertID], slots...)
}

func (m *Memory) SeedUnavailable(expertID string, date time.Time, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.unavailable[expertID] == nil {
		m.st.unavailable[expertID] = map[string]model.UnavailableDate{}
	}
	m.st.unavailable[expertID][dayKey(date)] = model.UnavailableDate{
		ExpertID: expertID,
		Date:     date,
		Reason:   reason,
	}
}

// Inspection helpers.

func (m *Memory) Booking(id string) (model.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.st.bookings[id]
	return b, ok
}

func (m *Memory) BookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.bookings)
}

func (m *Memory) Wallet(expertID string) (model.Wallet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.st.wallets[expertID]
	return w, ok
}

func (m *Memory) WalletTransactions(expertID string) []model.WalletTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WalletTransaction
	for _, t := range m.st.walletTxs {
		if t.ExpertID == expertID {
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.st.events...)
}

func (m *Memory) History(bookingID string) []model.BookingHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BookingHistory
	for _, h := range m.st.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out
}

func (m *Memory) Plan(id string) (model.PaymentPlan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.plans[id]
	return p, ok
}

func (m *Memory) WithdrawalRequest(id string) (model.WithdrawalRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.withdrawals[id]
	return r, ok
}

// storage.Store

func (m *Memory) ExecTx(_ context.Context, fn func(storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(&memTx{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) GetBooking(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.st.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListBookingHistory(_ context.Context, bookingID string) ([]model.BookingHistory, error) {
	return m.History(bookingID), nil
}

func (m *Memory) GetExpert(_ context.Context, id string) (model.Expert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.experts[id]
	if !ok {
		return model.Expert{}, model.ErrNotFound
	}
	return e, nil
}

func (m *Memory) GetWallet(_ context.Context, expertID string) (model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.st.wallets[expertID]
	if !ok {
		return model.Wallet{}, model.ErrNotFound
	}
	return w, nil
}

func (m *Memory) ListWalletTransactions(_ context.Context, expertID string, limit int) ([]model.WalletTransaction, error) {
	txs := m.WalletTransactions(expertID)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *Memory) ListSlots(_ context.Context, expertID string, weekday time.Weekday) ([]model.AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailabilitySlot
	for _, s := range m.st.slots[expertID] {
		if s.Weekday == weekday {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) GetUnavailableDate(_ context.Context, expertID string, date time.Time) (*model.UnavailableDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.unavailable[expertID][dayKey(date)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListActiveIntervals(_ context.Context, expertID string, date time.Time) ([]availability.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.Interval
	for _, b := range m.st.bookings {
		if b.ExpertID == expertID && dayKey(b.Date) == dayKey(date) && activeStatus(b.Status) {
			out = append(out, availability.Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	return out, nil
}

// storage.Tx

type memTx struct {
	st *state
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	for _, other := range t.st.bookings {
		if other.ExpertID == b.ExpertID && activeStatus(other.Status) &&
			b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime) {
			return model.ErrConflict
		}
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memTx) GetBookingForUpdate(_ context.Context, id string) (model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (t *memTx) GetBookingByIntentForUpdate(_ context.Context, intentID string) (model.Booking, error) {
	for _, b := range t.st.bookings {
		if b.PaymentIntentID == intentID {
			return b, nil
		}
	}
	return model.Booking{}, model.ErrNotFound
}

func (t *memTx) SaveBooking(_ context.Context, b model.Booking) error {
	if _, ok := t.st.bookings[b.ID]; !ok {
		return model.ErrNotFound
	}
	if activeStatus(b.Status) {
		for _, other := range t.st.bookings {
			if other.ID != b.ID && other.ExpertID == b.ExpertID && activeStatus(other.Status) &&
				b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime) {
				return model.ErrConflict
			}
		}
	}
	b.UpdatedAt = time.Now().UTC()
	t.st.bookings[b.ID] = b
	return nil
}

func (t *memTx) ListActiveBookings(_ context.Context, expertID string, date time.Time, excludeID string) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range t.st.bookings {
		if b.ExpertID == expertID && dayKey(b.Date) == dayKey(date) && activeStatus(b.Status) && b.ID != excludeID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) InsertHistory(_ context.Context, h model.BookingHistory) error {
	h.CreatedAt = time.Now().UTC()
	t.st.history = append(t.st.history, h)
	return nil
}

func (t *memTx) GetExpert(_ context.Context, id string) (model.Expert, error) {
	e, ok := t.st.experts[id]
	if !ok {
		return model.Expert{}, model.ErrNotFound
	}
	return e, nil
}

func (t *memTx) GetWalletForUpdate(_ context.Context, expertID string) (model.Wallet, error) {
	w, ok := t.st.wallets[expertID]
	if !ok {
		return model.Wallet{}, model.ErrNotFound
	}
	return w, nil
}

func (t *memTx) InsertWallet(_ context.Context, w model.Wallet) error {
	t.st.wallets[w.ExpertID] = w
	return nil
}

func (t *memTx) SaveWallet(_ context.Context, w model.Wallet) error {
	if _, ok := t.st.wallets[w.ExpertID]; !ok {
		return model.ErrNotFound
	}
	t.st.wallets[w.ExpertID] = w
	return nil
}

func (t *memTx) InsertWalletTransaction(_ context.Context, wt model.WalletTransaction) error {
	wt.CreatedAt = time.Now().UTC()
	t.st.walletTxs = append(t.st.walletTxs, wt)
	return nil
}

func (t *memTx) UpdateWalletTransactionStatus(_ context.Context, expertID string, typ model.TransactionType, referenceID string, status model.TransactionStatus) error {
	for i, wt := range t.st.walletTxs {
		if wt.ExpertID == expertID && wt.Type == typ && wt.ReferenceID == referenceID {
			t.st.walletTxs[i].Status = status
			return nil
		}
	}
	return model.ErrNotFound
}

func (t *memTx) InsertWithdrawalRequest(_ context.Context, r model.WithdrawalRequest) error {
	t.st.withdrawals[r.ID] = r
	return nil
}

func (t *memTx) GetWithdrawalRequestForUpdate(_ context.Context, id string) (model.WithdrawalRequest, error) {
	r, ok := t.st.withdrawals[id]
	if !ok {
		return model.WithdrawalRequest{}, model.ErrNotFound
	}
	return r, nil
}

func (t *memTx) SaveWithdrawalRequest(_ context.Context, r model.WithdrawalRequest) error {
	if _, ok := t.st.withdrawals[r.ID]; !ok {
		return model.ErrNotFound
	}
	t.st.withdrawals[r.ID] = r
	return nil
}

func (t *memTx) InsertPlan(_ context.Context, p model.PaymentPlan, installments []model.Installment) error {
	t.st.plans[p.ID] = p
	for _, ins := range installments {
		t.st.installments[ins.ID] = ins
	}
	return nil
}

func (t *memTx) GetPlanForUpdate(_ context.Context, id string) (model.PaymentPlan, error) {
	p, ok := t.st.plans[id]
	if !ok {
		return model.PaymentPlan{}, model.ErrNotFound
	}
	return p, nil
}

func (t *memTx) SavePlan(_ context.Context, p model.PaymentPlan) error {
	if _, ok := t.st.plans[p.ID]; !ok {
		return model.ErrNotFound
	}
	t.st.plans[p.ID] = p
	return nil
}

func (t *memTx) GetInstallmentForUpdate(_ context.Context, id string) (model.Installment, error) {
	ins, ok := t.st.installments[id]
	if !ok {
		return model.Installment{}, model.ErrNotFound
	}
	return ins, nil
}

func (t *memTx) ListInstallments(_ context.Context, planID string) ([]model.Installment, error) {
	var out []model.Installment
	for _, ins := range t.st.installments {
		if ins.PlanID == planID {
			out = append(out, ins)
		}
	}
	sortInstallments(out)
	return out, nil
}

func (t *memTx) SaveInstallment(_ context.Context, ins model.Installment) error {
	if _, ok := t.st.installments[ins.ID]; !ok {
		return model.ErrNotFound
	}
	t.st.installments[ins.ID] = ins
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.st.events = append(t.st.events, evt)
	return nil
}

func (t *memTx) InsertProviderEvent(_ context.Context, provider, providerEventID, _ string, _ []byte) error {
	key := provider + ":" + providerEventID
	if _, ok := t.st.provider[key]; ok {
		return storage.ErrDuplicateProviderEvent
	}
	t.st.provider[key] = struct{}{}
	return nil
}

func sortInstallments(list []model.Installment) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Sequence < list[j-1].Sequence; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

// activeStatus matches the exclusion constraint's predicate: every
// non-cancelled booking blocks its window, completed ones included.
func activeStatus(s model.BookingStatus) bool {
	return s != model.BookingCancelled
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var _ storage.Store = (*Memory)(nil)
var _ storage.Tx = (*memTx)(nil)
