package rbac

// Resources and actions checked by handlers and services.
const (
	ResourceLeave        = "leave"
	ResourceNotification = "notification"

	ActionReadOwn    = "read_own"
	ActionReadAny    = "read_any"
	ActionCreate     = "create"
	ActionCreateAny  = "create_any"
	ActionUpdateOwn  = "update_own"
	ActionApprove    = "approve"
	ActionCancelOwn  = "cancel_own"
	ActionCancelAny  = "cancel_any"
	ActionBalanceOwn = "balance_own"
	ActionBalanceAny = "balance_any"
	ActionStats      = "stats"
	ActionReturnAny  = "return_any"
)

type Capability struct {
	Resource string
	Action   string
}

// Grant assigns capabilities to a role. Roles listed in Inherits receive
// everything granted to them as well.
type Grant struct {
	Role         Role
	Inherits     []Role
	Capabilities []Capability
}

// DefaultGrants is the organisation-wide capability table.
var DefaultGrants = []Grant{
	{
		Role: RoleEmployee,
		Capabilities: []Capability{
			{ResourceLeave, ActionReadOwn},
			{ResourceLeave, ActionCreate},
			{ResourceLeave, ActionUpdateOwn},
			{ResourceLeave, ActionCancelOwn},
			{ResourceLeave, ActionBalanceOwn},
			{ResourceNotification, ActionReadOwn},
		},
	},
	{
		Role:     RoleManager,
		Inherits: []Role{RoleEmployee},
		Capabilities: []Capability{
			{ResourceLeave, ActionReadAny},
			{ResourceLeave, ActionApprove},
			{ResourceLeave, ActionCancelAny},
			{ResourceLeave, ActionBalanceAny},
		},
	},
	{
		Role:     RoleHR,
		Inherits: []Role{RoleManager},
		Capabilities: []Capability{
			{ResourceLeave, ActionCreateAny},
			{ResourceLeave, ActionStats},
			{ResourceLeave, ActionReturnAny},
		},
	},
	{
		Role:     RoleAdmin,
		Inherits: []Role{RoleHR},
	},
}
