package permissions

// Known permission vocabulary for the control plane. Role permission sets
// must be a subset of these tokens; anything else is rejected at role
// creation or update.
const (
	Read           = "read"
	Write          = "write"
	Approve        = "approve"
	ManageFeatures = "manage_features"
	ManageAdmins   = "manage_admins"
	ManageMembers  = "manage_members"
	ViewReports    = "view_reports"
)

// Vocabulary returns a fresh copy of the full known token set.
func Vocabulary() []string {
	return []string{
		Read,
		Write,
		Approve,
		ManageFeatures,
		ManageAdmins,
		ManageMembers,
		ViewReports,
	}
}
