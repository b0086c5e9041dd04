package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Gabiro3/curuza-pos2/domain"
)

var (
	admin = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	clerk = domain.Actor{UserID: "clerk-1", Role: domain.RoleUser}
	guest = domain.Actor{UserID: "nobody", Role: domain.Role("")}
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		actor  domain.Actor
		action Action
		entity Entity
		want   bool
	}{
		{"user reads products", clerk, ActionRead, EntityProduct, true},
		{"user reads reports", clerk, ActionRead, EntityReport, true},
		{"user creates sales", clerk, ActionCreate, EntitySale, true},
		{"user creates movements", clerk, ActionCreate, EntityMovement, true},
		{"user cannot update sales", clerk, ActionUpdate, EntitySale, false},
		{"user cannot delete sales", clerk, ActionDelete, EntitySale, false},
		{"user cannot delete movements", clerk, ActionDelete, EntityMovement, false},
		{"user cannot touch users", clerk, ActionUpdate, EntityUser, false},
		{"admin updates sales", admin, ActionUpdate, EntitySale, true},
		{"admin touches users", admin, ActionDelete, EntityUser, true},
		{"missing role gets nothing", guest, ActionRead, EntityProduct, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Can(tc.actor, tc.action, tc.entity))
		})
	}
}

func TestCanOwn(t *testing.T) {
	cases := []struct {
		name      string
		actor     domain.Actor
		action    Action
		entity    Entity
		createdBy string
		want      bool
	}{
		{"user updates own product", clerk, ActionUpdate, EntityProduct, "clerk-1", true},
		{"user cannot update another's product", clerk, ActionUpdate, EntityProduct, "clerk-2", false},
		{"user deletes own plan", clerk, ActionDelete, EntityPlan, "clerk-1", true},
		{"user cannot delete another's customer", clerk, ActionDelete, EntityCustomer, "clerk-2", false},
		{"admin ignores ownership", admin, ActionDelete, EntityProduct, "clerk-1", true},
		{"ungranted action fails regardless of owner", clerk, ActionDelete, EntitySale, "clerk-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanOwn(tc.actor, tc.action, tc.entity, tc.createdBy))
		})
	}
}

func TestAuthorizeWrapsUnauthorized(t *testing.T) {
	assert.NoError(t, Authorize(clerk, ActionCreate, EntitySale))
	assert.ErrorIs(t, Authorize(clerk, ActionDelete, EntitySale), domain.ErrUnauthorized)
	assert.NoError(t, AuthorizeOwn(clerk, ActionUpdate, EntityPlan, "clerk-1"))
	assert.ErrorIs(t, AuthorizeOwn(clerk, ActionUpdate, EntityPlan, "clerk-2"), domain.ErrUnauthorized)
}
