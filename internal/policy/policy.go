// Package policy decides which actors may perform which operations. Rules
// live in one table keyed by role, action and entity type instead of being
// scattered through the services.
package policy

import (
	"fmt"

	"github.com/Gabiro3/curuza-pos2/domain"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Entity string

const (
	EntityProduct  Entity = "product"
	EntityMovement Entity = "movement"
	EntityCustomer Entity = "customer"
	EntitySale     Entity = "sale"
	EntityPlan     Entity = "plan"
	EntityReport   Entity = "report"
	EntityUser     Entity = "user"
)

type rule struct {
	role   domain.Role
	action Action
	entity Entity
}

// ownerScoped marks grants that only apply to records the actor created.
// Admins always pass the ownership check.
var grants = map[rule]bool{
	// Everyone authenticated can read business data.
	{domain.RoleUser, ActionRead, EntityProduct}:  true,
	{domain.RoleUser, ActionRead, EntityMovement}: true,
	{domain.RoleUser, ActionRead, EntityCustomer}: true,
	{domain.RoleUser, ActionRead, EntitySale}:     true,
	{domain.RoleUser, ActionRead, EntityPlan}:     true,
	{domain.RoleUser, ActionRead, EntityReport}:   true,

	// Plain users create records and may touch only their own afterwards.
	{domain.RoleUser, ActionCreate, EntityProduct}:  true,
	{domain.RoleUser, ActionCreate, EntityMovement}: true,
	{domain.RoleUser, ActionCreate, EntityCustomer}: true,
	{domain.RoleUser, ActionCreate, EntitySale}:     true,
	{domain.RoleUser, ActionCreate, EntityPlan}:     true,
	{domain.RoleUser, ActionUpdate, EntityProduct}:  true,
	{domain.RoleUser, ActionUpdate, EntityCustomer}: true,
	{domain.RoleUser, ActionUpdate, EntityPlan}:     true,
	{domain.RoleUser, ActionDelete, EntityProduct}:  true,
	{domain.RoleUser, ActionDelete, EntityCustomer}: true,
	{domain.RoleUser, ActionDelete, EntityPlan}:     true,
}

var ownerScoped = map[rule]bool{
	{domain.RoleUser, ActionUpdate, EntityProduct}:  true,
	{domain.RoleUser, ActionUpdate, EntityCustomer}: true,
	{domain.RoleUser, ActionUpdate, EntityPlan}:     true,
	{domain.RoleUser, ActionDelete, EntityProduct}:  true,
	{domain.RoleUser, ActionDelete, EntityCustomer}: true,
	{domain.RoleUser, ActionDelete, EntityPlan}:     true,
}

// Can reports whether the actor may perform action on the entity type.
// Admins may do anything.
func Can(actor domain.Actor, action Action, entity Entity) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	return grants[rule{actor.Role, action, entity}]
}

// CanOwn is Can plus the ownership restriction for owner-scoped grants:
// a plain user may update or delete only records they created.
func CanOwn(actor domain.Actor, action Action, entity Entity, createdBy string) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	r := rule{actor.Role, action, entity}
	if !grants[r] {
		return false
	}
	if ownerScoped[r] && createdBy != actor.UserID {
		return false
	}
	return true
}

// Authorize converts a failed capability check into ErrUnauthorized.
func Authorize(actor domain.Actor, action Action, entity Entity) error {
	if !Can(actor, action, entity) {
		return fmt.Errorf("%w: %s may not %s %s", domain.ErrUnauthorized, actor.Role, action, entity)
	}
	return nil
}

// AuthorizeOwn is Authorize with the ownership restriction applied.
func AuthorizeOwn(actor domain.Actor, action Action, entity Entity, createdBy string) error {
	if !CanOwn(actor, action, entity, createdBy) {
		return fmt.Errorf("%w: %s may not %s this %s", domain.ErrUnauthorized, actor.Role, action, entity)
	}
	return nil
}
