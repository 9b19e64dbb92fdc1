package shared

// Permissions checked by route groups.
const (
	PermShiftsOperate = "shifts.operate"
	PermShiftsAdmin   = "shifts.admin"

	PermSalesRecord = "sales.record"
	PermSalesDelete = "sales.delete"

	PermCatalogView = "catalog.view"
	PermCatalogEdit = "catalog.edit"

	PermConfigView = "config.view"
	PermConfigEdit = "config.edit"

	PermReportsView = "reports.view"

	PermUsersManage = "users.manage"

	PermJobsView = "jobs.view"

	PermAuditView = "audit.view"
)

// SellerScopes lists permissions granted to sellers.
func SellerScopes() []string {
	return []string{
		PermShiftsOperate,
		PermSalesRecord,
		PermCatalogView,
		PermConfigView,
		PermReportsView,
	}
}

// AdminScopes lists every permission.
func AdminScopes() []string {
	return append(SellerScopes(),
		PermShiftsAdmin,
		PermSalesDelete,
		PermCatalogEdit,
		PermConfigEdit,
		PermUsersManage,
		PermJobsView,
		PermAuditView,
	)
}

// ScopesForRole returns the permissions granted to role.
func ScopesForRole(role Role) []string {
	switch role {
	case RoleAdmin:
		return AdminScopes()
	case RoleSeller:
		return SellerScopes()
	default:
		return nil
	}
}
