package storage

import (
	"context"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
)

func (t *pgTx) InsertPlan(ctx context.Context, p model.PaymentPlan, installments []model.Installment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payment_plans (id, booking_id, client_id, expert_id, total_cents, installment_count, per_installment_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.BookingID, p.ClientID, p.ExpertID, p.TotalCents, p.InstallmentCount, p.PerInstallment, p.Status)
	if err != nil {
		return err
	}

	for _, ins := range installments {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO installments (id, plan_id, sequence, amount_cents, due_at, status, payment_ref, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, ins.ID, ins.PlanID, ins.Sequence, ins.AmountCents, ins.DueAt, ins.Status, nullIfEmpty(ins.PaymentRef), ins.PaidAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) GetPlanForUpdate(ctx context.Context, id string) (model.PaymentPlan, error) {
	var p model.PaymentPlan
	err := t.tx.QueryRow(ctx, `
		SELECT id, booking_id, client_id, expert_id, total_cents, installment_count, per_installment_cents, status, created_at, updated_at
		FROM payment_plans
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.BookingID, &p.ClientID, &p.ExpertID, &p.TotalCents, &p.InstallmentCount, &p.PerInstallment, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.PaymentPlan{}, mapNotFound(err)
	}
	return p, nil
}

func (t *pgTx) SavePlan(ctx context.Context, p model.PaymentPlan) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE payment_plans
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Status)
	return err
}

func (t *pgTx) GetInstallmentForUpdate(ctx context.Context, id string) (model.Installment, error) {
	var ins model.Installment
	var paidAt *time.Time
	err := t.tx.QueryRow(ctx, `
		SELECT id, plan_id, sequence, amount_cents, due_at, status, COALESCE(payment_ref, ''), paid_at, created_at
		FROM installments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&ins.ID, &ins.PlanID, &ins.Sequence, &ins.AmountCents, &ins.DueAt, &ins.Status, &ins.PaymentRef, &paidAt, &ins.CreatedAt)
	if err != nil {
		return model.Installment{}, mapNotFound(err)
	}
	ins.PaidAt = paidAt
	return ins, nil
}

func (t *pgTx) ListInstallments(ctx context.Context, planID string) ([]model.Installment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, plan_id, sequence, amount_cents, due_at, status, COALESCE(payment_ref, ''), paid_at, created_at
		FROM installments
		WHERE plan_id = $1
		ORDER BY sequence ASC
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Installment
	for rows.Next() {
		var ins model.Installment
		var paidAt *time.Time
		if err := rows.Scan(&ins.ID, &ins.PlanID, &ins.Sequence, &ins.AmountCents, &ins.DueAt, &ins.Status, &ins.PaymentRef, &paidAt, &ins.CreatedAt); err != nil {
			return nil, err
		}
		ins.PaidAt = paidAt
		out = append(out, ins)
	}
	return out, rows.Err()
}

func (t *pgTx) SaveInstallment(ctx context.Context, ins model.Installment) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE installments
		SET status = $2, payment_ref = $3, paid_at = $4
		WHERE id = $1
	`, ins.ID, ins.Status, nullIfEmpty(ins.PaymentRef), ins.PaidAt)
	return err
}
