package rbac

// Built-in roles. SafeShield ships exactly three: observers read, analysts
// run incident response, admins additionally manage accounts and settings.
const (
	RoleAdmin    = "admin"
	RoleAnalyst  = "analyst"
	RoleObserver = "observer"
)

const (
	PermIncidentsView    Permission = "incidents.view"
	PermIncidentsManage  Permission = "incidents.manage"
	PermResponseView     Permission = "response.view"
	PermResponseManage   Permission = "response.manage"
	PermEvidenceUpload   Permission = "evidence.upload"
	PermEvidenceDownload Permission = "evidence.download"
	PermReportExport     Permission = "report.export"
	PermTrainingView     Permission = "training.view"
	PermTrainingComplete Permission = "training.complete"
	PermTrainingManage   Permission = "training.manage"
	PermNotificationsUse Permission = "notifications.use"
	PermLogsView         Permission = "logs.view"
	PermAccountsManage   Permission = "accounts.manage"
)

func observerPermissions() []Permission {
	return []Permission{
		PermIncidentsView,
		PermResponseView,
		PermEvidenceDownload,
		PermReportExport,
		PermTrainingView,
		PermTrainingComplete,
		PermNotificationsUse,
	}
}

func analystPermissions() []Permission {
	return append(observerPermissions(),
		PermIncidentsManage,
		PermResponseManage,
		PermEvidenceUpload,
	)
}

func adminPermissions() []Permission {
	return append(analystPermissions(),
		PermTrainingManage,
		PermLogsView,
		PermAccountsManage,
	)
}

func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Full access including account management", Permissions: adminPermissions()},
		{Name: RoleAnalyst, Description: "Runs incident response and manages incidents", Permissions: analystPermissions()},
		{Name: RoleObserver, Description: "Read-only access to incidents and reports", Permissions: observerPermissions()},
	}
}
