package installments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/storage"
)

type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store storage.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreatePlan splits a booking's gross total (amount + tax) into n
// installments. The first installment is captured synchronously, so the
// booking immediately moves to partial payment; the booking's payment intent
// serves as the first payment's reference.
func (s *Service) CreatePlan(ctx context.Context, principal model.Principal, bookingID string, n int) (model.PaymentPlan, []model.Installment, error) {
	if !principal.Authenticated() {
		return model.PaymentPlan{}, nil, model.ErrUnauthenticated
	}

	var (
		plan model.PaymentPlan
		rows []model.Installment
	)
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.ClientID != principal.UserID {
			return model.ErrUnauthorized
		}
		if b.HasPaymentPlan {
			return model.Validationf("booking", "already has a payment plan")
		}
		if b.Status.Terminal() {
			return &model.StateTransitionError{From: b.Status, To: b.Status}
		}

		total := b.AmountCents + b.TaxCents
		parts, err := Split(total, n)
		if err != nil {
			return err
		}

		now := s.now()
		plan = model.PaymentPlan{
			ID:               uuid.NewString(),
			BookingID:        b.ID,
			ClientID:         b.ClientID,
			ExpertID:         b.ExpertID,
			TotalCents:       total,
			InstallmentCount: n,
			PerInstallment:   parts[0],
			Status:           model.PlanActive,
		}
		rows = Schedule(plan.ID, parts, now, b.PaymentIntentID, uuid.NewString)

		if err := tx.InsertPlan(ctx, plan, rows); err != nil {
			return err
		}

		b.HasPaymentPlan = true
		b.PaymentPlanID = plan.ID
		b.PaymentStatus = model.PaymentPartial
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return model.PaymentPlan{}, nil, err
	}
	return plan, rows, nil
}

// PayInstallment records a payment against a pending installment. When the
// last pending installment is paid the plan completes and the booking's
// payment status flips to paid.
func (s *Service) PayInstallment(ctx context.Context, principal model.Principal, installmentID, paymentRef string) (model.Installment, error) {
	if !principal.Authenticated() {
		return model.Installment{}, model.ErrUnauthenticated
	}

	var out model.Installment
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		ins, err := tx.GetInstallmentForUpdate(ctx, installmentID)
		if err != nil {
			return err
		}
		plan, err := tx.GetPlanForUpdate(ctx, ins.PlanID)
		if err != nil {
			return err
		}
		if plan.ClientID != principal.UserID {
			return model.ErrNotOwner
		}
		if plan.Status != model.PlanActive {
			return model.Validationf("plan", "is %s, not active", plan.Status)
		}
		if ins.Status != model.InstallmentPending {
			return model.ErrAlreadyPaid
		}

		now := s.now()
		ins.Status = model.InstallmentPaid
		ins.PaymentRef = paymentRef
		ins.PaidAt = &now
		if err := tx.SaveInstallment(ctx, ins); err != nil {
			return err
		}

		remaining, err := tx.ListInstallments(ctx, plan.ID)
		if err != nil {
			return err
		}
		pending := 0
		for _, r := range remaining {
			if r.ID != ins.ID && r.Status == model.InstallmentPending {
				pending++
			}
		}
		if pending == 0 {
			plan.Status = model.PlanCompleted
			if err := tx.SavePlan(ctx, plan); err != nil {
				return err
			}
			b, err := tx.GetBookingForUpdate(ctx, plan.BookingID)
			if err != nil {
				return err
			}
			b.PaymentStatus = model.PaymentPaid
			if err := tx.SaveBooking(ctx, b); err != nil {
				return err
			}
		}

		out = ins
		return nil
	})
	if err != nil {
		return model.Installment{}, err
	}
	return out, nil
}
