package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
)

type UserID string

type RoleID string

// Action is an operation a role may be granted on a resource.
type Action string

const (
	ActionCreate    Action = "CREATE"
	ActionRead      Action = "READ"
	ActionList      Action = "LIST"
	ActionModify    Action = "MODIFY"
	ActionReconcile Action = "RECONCILE"
	ActionSign      Action = "SIGN"
	ActionClose     Action = "CLOSE"
	ActionDelete    Action = "DELETE"
)

// AllActions lists every action.
var AllActions = []Action{
	ActionCreate, ActionRead, ActionList, ActionModify,
	ActionReconcile, ActionSign, ActionClose, ActionDelete,
}

// Resource is a class of record permissions are granted on.
type Resource string

const (
	ResourceAccount     Resource = "ACCOUNT"
	ResourceCommodity   Resource = "COMMODITY"
	ResourceCustomer    Resource = "CUSTOMER"
	ResourceJournal     Resource = "JOURNAL"
	ResourceLedger      Resource = "LEDGER"
	ResourceSupplier    Resource = "SUPPLIER"
	ResourceTransaction Resource = "TRANSACTION"
	ResourceUser        Resource = "USER"
)

// AllResources lists every resource.
var AllResources = []Resource{
	ResourceAccount, ResourceCommodity, ResourceCustomer, ResourceJournal,
	ResourceLedger, ResourceSupplier, ResourceTransaction, ResourceUser,
}

// Authenticator answers role and permission questions.
type Authenticator interface {
	UserHasRole(user UserID, role RoleID) bool
	RoleCanPerform(role RoleID, action Action, resource Resource) bool
	UserCanPerform(user UserID, action Action, resource Resource) bool
}

func CanCreate(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionCreate, r)
}

func CanModify(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionModify, r)
}

func CanReconcile(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionReconcile, r)
}

func CanSign(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionSign, r)
}

func CanClose(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionClose, r)
}

func CanDelete(a Authenticator, user UserID, r Resource) bool {
	return a.UserCanPerform(user, ActionDelete, r)
}

// Require returns ErrForbidden unless user may perform action on r.
func Require(a Authenticator, user UserID, action Action, r Resource) error {
	if a == nil || !a.UserCanPerform(user, action, r) {
		return fmt.Errorf("%w: user %q may not %s %s", apperrors.ErrForbidden, user, action, r)
	}
	return nil
}

// Permissions is the role table stored alongside a data store.
type Permissions struct {
	Version string                           `json:"version"`
	Created time.Time                        `json:"created"`
	Roles   map[RoleID]map[Resource][]Action `json:"roles"`
	Users   map[UserID][]RoleID              `json:"users"`
}

const (
	AdminRole  RoleID = "admin"
	ReaderRole RoleID = "reader"
)

// DefaultPermissions grants admin every action and reader read and list on every resource.
func DefaultPermissions() Permissions {
	p := Permissions{
		Version: StoreSchemaVersion,
		Created: Now(),
		Roles:   map[RoleID]map[Resource][]Action{AdminRole: {}, ReaderRole: {}},
		Users:   map[UserID][]RoleID{},
	}
	for _, r := range AllResources {
		p.Roles[AdminRole][r] = slices.Clone(AllActions)
		p.Roles[ReaderRole][r] = []Action{ActionRead, ActionList}
	}
	return p
}

// Grant adds role to user.
func (p *Permissions) Grant(user UserID, role RoleID) {
	if p.Users == nil {
		p.Users = map[UserID][]RoleID{}
	}
	if !slices.Contains(p.Users[user], role) {
		p.Users[user] = append(p.Users[user], role)
	}
}

func (p Permissions) UserHasRole(user UserID, role RoleID) bool {
	return slices.Contains(p.Users[user], role)
}

func (p Permissions) RoleCanPerform(role RoleID, action Action, resource Resource) bool {
	return slices.Contains(p.Roles[role][resource], action)
}

func (p Permissions) UserCanPerform(user UserID, action Action, resource Resource) bool {
	for _, role := range p.Users[user] {
		if p.RoleCanPerform(role, action, resource) {
			return true
		}
	}
	return false
}

// Validate checks that every grant names a known action and resource and that users only hold
// defined roles.
func (p Permissions) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("%w: permissions have no version", apperrors.ErrValidation)
	}
	for role, resources := range p.Roles {
		for resource, actions := range resources {
			if !slices.Contains(AllResources, resource) {
				return fmt.Errorf("%w: role %q names unknown resource %q", apperrors.ErrValidation, role, resource)
			}
			for _, a := range actions {
				if !slices.Contains(AllActions, a) {
					return fmt.Errorf("%w: role %q names unknown action %q", apperrors.ErrValidation, role, a)
				}
			}
		}
	}
	for user, roles := range p.Users {
		for _, role := range roles {
			if _, ok := p.Roles[role]; !ok {
				return fmt.Errorf("%w: user %q holds undefined role %q", apperrors.ErrValidation, user, role)
			}
		}
	}
	return nil
}
