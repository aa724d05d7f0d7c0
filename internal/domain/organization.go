package domain

// OrgRole mirrors the organization role enumeration of the upstream
// protocol. Values are wire-visible and must not be reordered.
type OrgRole int

const (
	OrgRoleOwner OrgRole = iota
	OrgRoleAdmin
	OrgRoleUser
	OrgRoleManager
)

// UserOrganization is a membership record, owned by the organization
// subsystem and consumed read-only when building token claims.
type UserOrganization struct {
	UserID string  `gorm:"type:uuid;primaryKey" db:"user_id" json:"userId"`
	OrgID  string  `gorm:"type:uuid;primaryKey" db:"org_id" json:"orgId"`
	Role   OrgRole `gorm:"not null" db:"role" json:"role"`
}

func (UserOrganization) TableName() string { return "user_organizations" }
