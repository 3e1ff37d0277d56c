package auth

// MemberType is the role an organization member holds.
type MemberType string

const (
	MemberTypeOwner   MemberType = "owner"
	MemberTypeAdmin   MemberType = "admin"
	MemberTypeManager MemberType = "manager"
	MemberTypeCustom  MemberType = "custom"
	MemberTypeUser    MemberType = "user"
)

// Valid reports whether t is a known member type.
func (t MemberType) Valid() bool {
	switch t {
	case MemberTypeOwner, MemberTypeAdmin, MemberTypeManager, MemberTypeCustom, MemberTypeUser:
		return true
	}
	return false
}

// Rank orders member types, higher is more privileged.
func (t MemberType) Rank() int {
	switch t {
	case MemberTypeOwner:
		return 5
	case MemberTypeAdmin:
		return 4
	case MemberTypeManager:
		return 3
	case MemberTypeCustom:
		return 2
	case MemberTypeUser:
		return 1
	}
	return 0
}

// Flag names a single custom permission.
type Flag string

const (
	FlagAccessEventLogs           Flag = "accessEventLogs"
	FlagAccessImportExport        Flag = "accessImportExport"
	FlagAccessReports             Flag = "accessReports"
	FlagCreateNewCollections      Flag = "createNewCollections"
	FlagEditAnyCollection         Flag = "editAnyCollection"
	FlagDeleteAnyCollection       Flag = "deleteAnyCollection"
	FlagEditAssignedCollections   Flag = "editAssignedCollections"
	FlagDeleteAssignedCollections Flag = "deleteAssignedCollections"
	FlagManageGroups              Flag = "manageGroups"
	FlagManagePolicies            Flag = "managePolicies"
	FlagManageSso                 Flag = "manageSso"
	FlagManageUsers               Flag = "manageUsers"
	FlagManageResetPassword       Flag = "manageResetPassword"
	FlagManageScim                Flag = "manageScim"
)

// Permissions is the set of custom permission flags carried by Custom members.
type Permissions struct {
	AccessEventLogs           bool `json:"accessEventLogs"`
	AccessImportExport        bool `json:"accessImportExport"`
	AccessReports             bool `json:"accessReports"`
	CreateNewCollections      bool `json:"createNewCollections"`
	EditAnyCollection         bool `json:"editAnyCollection"`
	DeleteAnyCollection       bool `json:"deleteAnyCollection"`
	EditAssignedCollections   bool `json:"editAssignedCollections"`
	DeleteAssignedCollections bool `json:"deleteAssignedCollections"`
	ManageGroups              bool `json:"manageGroups"`
	ManagePolicies            bool `json:"managePolicies"`
	ManageSso                 bool `json:"manageSso"`
	ManageUsers               bool `json:"manageUsers"`
	ManageResetPassword       bool `json:"manageResetPassword"`
	ManageScim                bool `json:"manageScim"`
}

// flags lists every flag with its value, in a stable order.
func (p Permissions) flags() []struct {
	flag  Flag
	value bool
} {
	return []struct {
		flag  Flag
		value bool
	}{
		{FlagAccessEventLogs, p.AccessEventLogs},
		{FlagAccessImportExport, p.AccessImportExport},
		{FlagAccessReports, p.AccessReports},
		{FlagCreateNewCollections, p.CreateNewCollections},
		{FlagEditAnyCollection, p.EditAnyCollection},
		{FlagDeleteAnyCollection, p.DeleteAnyCollection},
		{FlagEditAssignedCollections, p.EditAssignedCollections},
		{FlagDeleteAssignedCollections, p.DeleteAssignedCollections},
		{FlagManageGroups, p.ManageGroups},
		{FlagManagePolicies, p.ManagePolicies},
		{FlagManageSso, p.ManageSso},
		{FlagManageUsers, p.ManageUsers},
		{FlagManageResetPassword, p.ManageResetPassword},
		{FlagManageScim, p.ManageScim},
	}
}

// Has reports whether flag is enabled.
func (p Permissions) Has(flag Flag) bool {
	for _, f := range p.flags() {
		if f.flag == flag {
			return f.value
		}
	}
	return false
}

// Enabled returns the enabled flags in declaration order.
func (p Permissions) Enabled() []Flag {
	var enabled []Flag
	for _, f := range p.flags() {
		if f.value {
			enabled = append(enabled, f.flag)
		}
	}
	return enabled
}

// Role is a member type together with the permissions a Custom member holds.
// Permissions is nil for every type other than Custom.
type Role struct {
	Type        MemberType   `json:"type"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

// NewRole builds a Role, dropping permissions for non-Custom types.
func NewRole(t MemberType, perms *Permissions) Role {
	if t != MemberTypeCustom {
		return Role{Type: t}
	}
	if perms == nil {
		perms = &Permissions{}
	}
	return Role{Type: t, Permissions: perms}
}

// Has reports whether the role carries flag as a custom permission.
func (r Role) Has(flag Flag) bool {
	return r.Type == MemberTypeCustom && r.Permissions != nil && r.Permissions.Has(flag)
}

// ClientType identifies the kind of principal making a request.
type ClientType string

const (
	ClientTypeUser           ClientType = "user"
	ClientTypeServiceAccount ClientType = "service_account"
	ClientTypeOrganization   ClientType = "organization"
)
