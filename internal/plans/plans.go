// Package plans implements the purchase-plan state machine. Plans affect
// stock only at the scheduled -> completed transition, which feeds the ledger
// one inbound movement per product-referenced item.
package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/ledger"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

// transitions is the full status graph. Completed and cancelled are terminal.
var transitions = map[domain.PlanStatus][]domain.PlanStatus{
	domain.PlanDraft:     {domain.PlanScheduled},
	domain.PlanScheduled: {domain.PlanDraft, domain.PlanCompleted, domain.PlanCancelled},
}

func allowed(from, to domain.PlanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type CreateInput struct {
	Name        string
	PlannedDate string
	Notes       string
}

type ItemInput struct {
	ProductID *string
	ProdName  string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// PlanRecord bundles a plan with its items.
type PlanRecord struct {
	domain.PurchasePlan
	Items []domain.PurchasePlanItem `json:"items"`
}

func (s *Service) Create(ctx context.Context, input CreateInput, actor domain.Actor) (*PlanRecord, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityPlan); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: plan name is required", domain.ErrValidation)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchase_plans (id, name, planned_date, status, notes, total_cost, created_by)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		id, input.Name, input.PlannedDate, domain.PlanDraft, input.Notes, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, id)
}

// AddItem appends an item to a draft plan and recomputes its total cost.
func (s *Service) AddItem(ctx context.Context, planID string, input ItemInput, actor domain.Actor) (*PlanRecord, error) {
	plan, err := s.fetch(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionUpdate, policy.EntityPlan, plan.CreatedBy); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: item quantity must be positive", domain.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: item unit price cannot be negative", domain.ErrValidation)
	}
	if input.ProductID == nil && input.ProdName == "" {
		return nil, fmt.Errorf("%w: item needs a product reference or a name", domain.ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := requireDraftTx(ctx, tx, planID); err != nil {
		return nil, err
	}
	if input.ProductID != nil {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, *input.ProductID); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, *input.ProductID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchase_plan_items (id, plan_id, product_id, prod_name, quantity, unit_price)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), planID, input.ProductID, input.ProdName, input.Quantity, input.UnitPrice)
	if err != nil {
		return nil, err
	}
	if err := recomputeTotalTx(ctx, tx, planID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.record(ctx, planID)
}

// RemoveItem deletes an item from a draft plan and recomputes its total cost.
func (s *Service) RemoveItem(ctx context.Context, planID, itemID string, actor domain.Actor) (*PlanRecord, error) {
	plan, err := s.fetch(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionUpdate, policy.EntityPlan, plan.CreatedBy); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := requireDraftTx(ctx, tx, planID); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM purchase_plan_items WHERE id = ? AND plan_id = ?`, itemID, planID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: plan item %s", domain.ErrNotFound, itemID)
	}
	if err := recomputeTotalTx(ctx, tx, planID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.record(ctx, planID)
}

// SetStatus applies a status transition. Completing a scheduled plan records
// one inbound movement per product-referenced item in the same transaction;
// a missing product aborts the whole completion.
func (s *Service) SetStatus(ctx context.Context, planID string, next domain.PlanStatus, actor domain.Actor) (*PlanRecord, error) {
	plan, err := s.fetch(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionUpdate, policy.EntityPlan, plan.CreatedBy); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown plan status %q", domain.ErrValidation, next)
	}
	if !allowed(plan.Status, next) {
		return nil, &domain.StateTransitionError{From: plan.Status, To: next}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The write re-checks the source status so two racing callers cannot both
	// move the plan, mirroring the ledger's conditional decrement.
	res, err := tx.ExecContext(ctx,
		`UPDATE purchase_plans SET status = ? WHERE id = ? AND status = ?`, next, planID, plan.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, err := planStatusTx(ctx, tx, planID)
		if err != nil {
			return nil, err
		}
		return nil, &domain.StateTransitionError{From: current, To: next}
	}

	if next == domain.PlanCompleted {
		var items []domain.PurchasePlanItem
		err := tx.SelectContext(ctx, &items,
			`SELECT id, plan_id, product_id, prod_name, quantity, unit_price
			 FROM purchase_plan_items WHERE plan_id = ?`, planID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.ProductID == nil {
				// Free-text items are planned-but-uncatalogued; no stock effect.
				continue
			}
			notes := "Purchase from plan: " + plan.Name
			if _, err := ledger.RecordMovementTx(ctx, tx, *item.ProductID, item.Quantity, domain.TransactionIn, notes, actor.UserID); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.record(ctx, planID)
}

// Delete removes a plan and its items. Completed plans keep their audit trail
// in the inventory transactions they produced.
func (s *Service) Delete(ctx context.Context, planID string, actor domain.Actor) error {
	plan, err := s.fetch(ctx, planID)
	if err != nil {
		return err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionDelete, policy.EntityPlan, plan.CreatedBy); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_plan_items WHERE plan_id = ?`, planID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_plans WHERE id = ?`, planID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) Get(ctx context.Context, planID string, actor domain.Actor) (*PlanRecord, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityPlan); err != nil {
		return nil, err
	}
	return s.record(ctx, planID)
}

func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.PurchasePlan, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityPlan); err != nil {
		return nil, err
	}
	var list []domain.PurchasePlan
	err := s.db.SelectContext(ctx, &list,
		`SELECT id, name, planned_date, status, notes, total_cost, created_by, created_at
		 FROM purchase_plans ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func recomputeTotalTx(ctx context.Context, tx *sqlx.Tx, planID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE purchase_plans SET total_cost = (
			SELECT COALESCE(SUM(quantity * unit_price), 0) FROM purchase_plan_items WHERE plan_id = ?
		 ) WHERE id = ?`, planID, planID)
	return err
}

// planStatusTx reads the plan's status inside the caller's transaction, so
// decisions based on it hold for the rest of that transaction.
func planStatusTx(ctx context.Context, tx *sqlx.Tx, planID string) (domain.PlanStatus, error) {
	var status domain.PlanStatus
	err := tx.GetContext(ctx, &status, `SELECT status FROM purchase_plans WHERE id = ?`, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: plan %s", domain.ErrNotFound, planID)
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func requireDraftTx(ctx context.Context, tx *sqlx.Tx, planID string) error {
	status, err := planStatusTx(ctx, tx, planID)
	if err != nil {
		return err
	}
	if status != domain.PlanDraft {
		return fmt.Errorf("%w: items can only be changed while the plan is a draft", domain.ErrInvalidStateTransition)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, planID string) (*domain.PurchasePlan, error) {
	var plan domain.PurchasePlan
	err := s.db.GetContext(ctx, &plan,
		`SELECT id, name, planned_date, status, notes, total_cost, created_by, created_at
		 FROM purchase_plans WHERE id = ?`, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %s", domain.ErrNotFound, planID)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) record(ctx context.Context, planID string) (*PlanRecord, error) {
	plan, err := s.fetch(ctx, planID)
	if err != nil {
		return nil, err
	}
	var items []domain.PurchasePlanItem
	err = s.db.SelectContext(ctx, &items,
		`SELECT id, plan_id, product_id, prod_name, quantity, unit_price
		 FROM purchase_plan_items WHERE plan_id = ?`, planID)
	if err != nil {
		return nil, err
	}
	return &PlanRecord{PurchasePlan: *plan, Items: items}, nil
}
