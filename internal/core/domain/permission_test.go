package domain_test

import (
	"testing"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestPermissions_ConvenienceChecksUseOwnAction(t *testing.T) {
	p := domain.Permissions{
		Roles: map[domain.RoleID]map[domain.Resource][]domain.Action{
			"creator": {domain.ResourceJournal: {domain.ActionCreate}},
		},
		Users: map[domain.UserID][]domain.RoleID{"alice": {"creator"}},
	}

	assert.True(t, domain.CanCreate(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanModify(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanReconcile(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanSign(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanClose(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanDelete(p, "alice", domain.ResourceJournal))
	assert.False(t, domain.CanCreate(p, "alice", domain.ResourceLedger))
}

func TestDefaultPermissions(t *testing.T) {
	p := domain.DefaultPermissions()
	p.Grant("root", domain.AdminRole)
	p.Grant("root", domain.AdminRole)
	p.Grant("auditor", domain.ReaderRole)

	assert.Len(t, p.Users["root"], 1)
	assert.True(t, p.UserHasRole("root", domain.AdminRole))
	assert.True(t, domain.CanSign(p, "root", domain.ResourceJournal))
	assert.True(t, p.UserCanPerform("auditor", domain.ActionList, domain.ResourceLedger))
	assert.False(t, domain.CanModify(p, "auditor", domain.ResourceLedger))

	assert.NoError(t, domain.Require(p, "root", domain.ActionDelete, domain.ResourceJournal))
	assert.ErrorIs(t, domain.Require(p, "nobody", domain.ActionRead, domain.ResourceJournal), apperrors.ErrForbidden)
	assert.ErrorIs(t, domain.Require(nil, "root", domain.ActionRead, domain.ResourceJournal), apperrors.ErrForbidden)
}

func TestPermissions_Validate(t *testing.T) {
	valid := domain.DefaultPermissions()
	valid.Grant("alice", domain.AdminRole)
	assert.NoError(t, valid.Validate())

	unknownRole := domain.DefaultPermissions()
	unknownRole.Grant("bob", "auditor")
	assert.ErrorIs(t, unknownRole.Validate(), apperrors.ErrValidation)

	unknownAction := domain.DefaultPermissions()
	unknownAction.Roles[domain.ReaderRole][domain.ResourceJournal] = []domain.Action{"PRINT"}
	assert.ErrorIs(t, unknownAction.Validate(), apperrors.ErrValidation)

	assert.ErrorIs(t, domain.Permissions{}.Validate(), apperrors.ErrValidation)
}
