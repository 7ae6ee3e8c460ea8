package authz

import (
	"strings"

	"github.com/Skotchmaster/retail_console/internal/models"
)

type Evaluator struct {
	RootEmail string
}

func NewEvaluator(rootEmail string) *Evaluator {
	return &Evaluator{RootEmail: rootEmail}
}

func (e *Evaluator) IsRoot(m *models.Member) bool {
	return m != nil && e.RootEmail != "" && strings.EqualFold(m.Email, e.RootEmail)
}

// HasHigherPrivilegeThan decides whether actor may mutate target. Both must
// already be resolved; a nil member never grants privilege.
func (e *Evaluator) HasHigherPrivilegeThan(actor, target *models.Member) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	if e.IsRoot(actor) {
		return true
	}

	switch actor.RoleMember {
	case models.RoleAdmin:
		return target.RoleMember != models.RoleAdmin
	case models.RoleOwner:
		if target.RoleMember != models.RoleEmployee {
			return false
		}
		return sameStore(actor.StoreID, target.StoreID)
	default:
		return false
	}
}

func sameStore(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}
