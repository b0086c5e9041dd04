// Package customers is thin CRUD. Sales snapshot the customer name, so
// nothing here can break sale history.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Gabiro3/curuza-pos2/domain"
	"github.com/Gabiro3/curuza-pos2/internal/policy"
)

type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type Input struct {
	Name  string
	Phone string
	Email string
}

func (s *Service) Create(ctx context.Context, input Input, actor domain.Actor) (*domain.Customer, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.EntityCustomer); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		CreatedBy: actor.UserID,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, name, phone, email, created_by) VALUES (?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Phone, customer.Email, customer.CreatedBy)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, customer.ID)
}

func (s *Service) Update(ctx context.Context, id string, input Input, actor domain.Actor) (*domain.Customer, error) {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionUpdate, policy.EntityCustomer, existing.CreatedBy); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, phone = ?, email = ? WHERE id = ?`,
		input.Name, input.Phone, input.Email, id)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string, actor domain.Actor) error {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.AuthorizeOwn(actor, policy.ActionDelete, policy.EntityCustomer, existing.CreatedBy); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	return err
}

func (s *Service) Get(ctx context.Context, id string, actor domain.Actor) (*domain.Customer, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityCustomer); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Customer, error) {
	if err := policy.Authorize(actor, policy.ActionRead, policy.EntityCustomer); err != nil {
		return nil, err
	}
	var list []domain.Customer
	err := s.db.SelectContext(ctx, &list,
		`SELECT id, name, phone, email, created_by, created_at FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.GetContext(ctx, &customer,
		`SELECT id, name, phone, email, created_by, created_at FROM customers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
