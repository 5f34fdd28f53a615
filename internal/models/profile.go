package models

// Profile holds the display fields supplied by the external profile directory.
type Profile struct {
	DisplayName    string `db:"display_name" json:"display_name,omitempty"`
	AvatarURL      string `db:"avatar_url" json:"avatar_url,omitempty"`
	DepartmentName string `db:"department_name" json:"department_name,omitempty"`
	RoleName       string `db:"role_name" json:"role_name,omitempty"`
	ShipName       string `db:"ship_name" json:"ship_name,omitempty"`
	CruiseLineName string `db:"cruise_line_name" json:"cruise_line_name,omitempty"`
}

// ProfileRecord is a Profile keyed by user id.
type ProfileRecord struct {
	UserID string `db:"user_id" json:"user_id"`
	Profile
}
