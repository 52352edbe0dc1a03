package model

// Role is a program-scoped role. Roles are closed: adding one here
// forces a decision for every permission in the matrix.
type Role string

const (
	RoleReceptionist   Role = "receptionist"
	RoleStaff          Role = "staff"
	RoleProgramManager Role = "program_manager"
	RoleExecutive      Role = "executive"
)

// Rank orders roles for best-program tie-breaking. Rank alone never
// decides access: a higher-ranked role can still deny a permission a
// lower-ranked role grants.
func (r Role) Rank() int {
	switch r {
	case RoleReceptionist:
		return 1
	case RoleStaff:
		return 2
	case RoleProgramManager:
		return 3
	case RoleExecutive:
		return 4
	}
	return 0
}

func (r Role) Valid() bool {
	switch r {
	case RoleReceptionist, RoleStaff, RoleProgramManager, RoleExecutive:
		return true
	}
	return false
}

// Roles lists every role, in rank order.
func Roles() []Role {
	return []Role{RoleReceptionist, RoleStaff, RoleProgramManager, RoleExecutive}
}

// Permission names a protected operation.
type Permission string

const (
	PermClientView           Permission = "client.view"
	PermClientEdit           Permission = "client.edit"
	PermNoteCreate           Permission = "note.create"
	PermNoteView             Permission = "note.view"
	PermPlanEdit             Permission = "plan.edit"
	PermEventCreate          Permission = "event.create"
	PermAlertCreate          Permission = "alert.create"
	PermAlertCancel          Permission = "alert.cancel"
	PermAlertRecommendCancel Permission = "alert.recommend_cancel"
	PermAlertReview          Permission = "alert.review"
	PermReportView           Permission = "report.view"
	PermExportCreate         Permission = "export.create"
)

// Permissions lists every permission key used by the system.
func Permissions() []Permission {
	return []Permission{
		PermClientView,
		PermClientEdit,
		PermNoteCreate,
		PermNoteView,
		PermPlanEdit,
		PermEventCreate,
		PermAlertCreate,
		PermAlertCancel,
		PermAlertRecommendCancel,
		PermAlertReview,
		PermReportView,
		PermExportCreate,
	}
}

// Decision is the outcome of a matrix lookup.
type Decision int

const (
	// Deny refuses the operation outright.
	Deny Decision = iota
	// Scoped allows the operation within the programs the role grant
	// covers.
	Scoped
	// Allow permits the operation without per-record program scoping.
	// Reserved for operations with no client-record target.
	Allow
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Scoped:
		return "scoped"
	default:
		return "deny"
	}
}
