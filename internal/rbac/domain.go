package rbac

import "github.com/sweetline/sweetline/internal/shared"

// Permissions exposed by the HTTP surface.
const (
	PermProductionCreate    = "production.create"
	PermProductionView      = "production.view"
	PermDistributionManage  = "distribution.manage"
	PermDistributionApprove = "distribution.approve"
	PermDistributionView    = "distribution.view"
	PermQuickBillCreate     = "quickbill.create"
	PermQuickBillView       = "quickbill.view"
	PermOrdersManage        = "orders.manage"
	PermReturnsManage       = "returns.manage"
	PermBranchStockView     = "branchstock.view"
	PermInventoryView       = "inventory.view"
	PermReportsAlerts       = "reports.alerts"
	PermReportsView         = "reports.view"
)

var rolePermissions = map[shared.Role][]string{
	shared.RoleSuperAdmin: {
		PermProductionView,
		PermDistributionManage, PermDistributionApprove, PermDistributionView,
		PermQuickBillView,
		PermOrdersManage,
		PermReturnsManage,
		PermBranchStockView,
		PermInventoryView,
		PermReportsAlerts, PermReportsView,
	},
	shared.RoleKitchenAdmin: {
		PermProductionCreate, PermProductionView,
		PermDistributionManage, PermDistributionView,
		PermQuickBillView,
		PermOrdersManage,
		PermReturnsManage,
		PermBranchStockView,
		PermInventoryView,
		PermReportsAlerts, PermReportsView,
	},
	shared.RoleTransportAdmin: {
		PermDistributionApprove, PermDistributionView,
	},
	shared.RoleBranchAdmin: {
		PermQuickBillCreate, PermQuickBillView,
		PermOrdersManage,
		PermReturnsManage,
		PermBranchStockView,
	},
	shared.RoleUser: {
		PermOrdersManage,
	},
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role shared.Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
