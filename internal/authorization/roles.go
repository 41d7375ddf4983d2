package authorization

import "strings"

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleCustomerManager Role = "customer_manager"
	RoleAccountant      Role = "accountant"
	RoleCollector       Role = "collector"
	RoleDefault         Role = "default"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleCustomerManager, RoleAccountant, RoleCollector, RoleDefault}

// ParseRole maps a header value to a Role. An empty value is RoleDefault.
func ParseRole(value string) (Role, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return RoleDefault, nil
	}
	for _, r := range Roles {
		if string(r) == value {
			return r, nil
		}
	}
	return "", ErrInvalidRole
}

const (
	ResourceCustomer         = "customer"
	ResourceInvoice          = "invoice"
	ResourceReceipt          = "receipt"
	ResourcePayment          = "payment"
	ResourceMpesaTransaction = "mpesa_transaction"
	ResourceTrashBagTask     = "trash_bag_task"
	ResourceReport           = "report"
)

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Capability struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

var crud = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// rolePermissions is the fixed capability table loaded into the enforcer.
var rolePermissions = map[Role]map[string][]string{
	RoleAdmin: {
		ResourceCustomer:         crud,
		ResourceInvoice:          crud,
		ResourceReceipt:          crud,
		ResourcePayment:          crud,
		ResourceMpesaTransaction: crud,
		ResourceTrashBagTask:     crud,
		ResourceReport:           {ActionRead},
	},
	RoleCustomerManager: {
		ResourceCustomer:         {ActionCreate, ActionRead},
		ResourceInvoice:          {ActionCreate, ActionRead},
		ResourceReceipt:          {ActionCreate, ActionRead},
		ResourcePayment:          {ActionCreate, ActionRead},
		ResourceMpesaTransaction: {ActionCreate, ActionRead},
		ResourceTrashBagTask:     {ActionCreate, ActionRead},
	},
	RoleAccountant: {
		ResourceReceipt: {ActionCreate, ActionRead},
		ResourcePayment: {ActionCreate, ActionRead},
		ResourceReport:  {ActionRead},
	},
	RoleCollector: {
		ResourceCustomer:     {ActionRead, ActionUpdate},
		ResourceTrashBagTask: {ActionCreate, ActionUpdate, ActionRead},
	},
	RoleDefault: {},
}

func subject(role Role) string {
	return "role:" + string(role)
}
