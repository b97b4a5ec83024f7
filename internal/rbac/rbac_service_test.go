package rbac

import (
	"testing"

	"go-hrms/internal/rbac/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	e, err := infra.NewEnforcer()
	require.NoError(t, err)

	svc, err := NewService(e, DefaultGrants)
	require.NoError(t, err)
	return svc
}

func TestService_Can_CapabilityTable(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		role    Role
		action  string
		allowed bool
	}{
		{RoleEmployee, ActionCreate, true},
		{RoleEmployee, ActionReadOwn, true},
		{RoleEmployee, ActionUpdateOwn, true},
		{RoleEmployee, ActionCancelOwn, true},
		{RoleEmployee, ActionBalanceOwn, true},
		{RoleEmployee, ActionReadAny, false},
		{RoleEmployee, ActionApprove, false},
		{RoleEmployee, ActionCancelAny, false},
		{RoleEmployee, ActionStats, false},

		{RoleManager, ActionApprove, true},
		{RoleManager, ActionReadAny, true},
		{RoleManager, ActionCancelAny, true},
		{RoleManager, ActionBalanceAny, true},
		{RoleManager, ActionCreate, true},
		{RoleManager, ActionStats, false},
		{RoleManager, ActionReturnAny, false},

		{RoleHR, ActionApprove, true},
		{RoleHR, ActionStats, true},
		{RoleHR, ActionReturnAny, true},
		{RoleHR, ActionCreateAny, true},
		{RoleManager, ActionCreateAny, false},

		{RoleAdmin, ActionApprove, true},
		{RoleAdmin, ActionStats, true},
		{RoleAdmin, ActionCancelAny, true},
		{RoleAdmin, ActionCancelOwn, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"_"+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.allowed, svc.Can(tt.role, ResourceLeave, tt.action))
		})
	}
}

func TestService_Enforce_UnknownRoleDenied(t *testing.T) {
	svc := newTestService(t)

	allowed, err := svc.Enforce(EnforceRequest{Role: "superuser", Resource: ResourceLeave, Action: ActionApprove})
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestService_Enforce_NotificationRead(t *testing.T) {
	svc := newTestService(t)

	for _, r := range Roles() {
		assert.True(t, svc.Can(r, ResourceNotification, ActionReadOwn), r)
	}
}

func TestService_Capabilities_IncludesInherited(t *testing.T) {
	svc := newTestService(t)

	caps, err := svc.Capabilities(RoleHR)
	require.NoError(t, err)

	assert.Contains(t, caps, "leave:stats")
	assert.Contains(t, caps, "leave:approve")
	assert.Contains(t, caps, "leave:create")
	assert.Contains(t, caps, "notification:read_own")

	_, err = svc.Capabilities(Role("ghost"))
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Manager ")
	assert.NoError(t, err)
	assert.Equal(t, RoleManager, r)

	_, err = ParseRole("owner")
	assert.Error(t, err)
}
