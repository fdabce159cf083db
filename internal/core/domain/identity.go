package domain

import "strings"

// Standby roles select the standby check set instead of the role-named one.
var standbyRoles = map[string]bool{
	"physical standby": true,
	"master":           true,
	"standby":          true,
}

// Identity describes the backend a session is connected to.
type Identity struct {
	Version      string `json:"version"`
	Role         string `json:"role"`
	InstanceType string `json:"instance_type"`
	InstanceName string `json:"instance_name"`
	Username     string `json:"username"`
	SessionID    string `json:"session_id"`
}

// IsStandby reports whether the backend is serving as a standby.
func (i Identity) IsStandby() bool {
	return standbyRoles[strings.ToLower(i.Role)]
}

// CheckSetName returns the base name of the role-specific check file,
// e.g. "primary.16" or "standby.19".
func (i Identity) CheckSetName() string {
	role := "standby"
	if !i.IsStandby() {
		role = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(i.Role)), " ", "_")
	}
	return role + "." + i.Version
}

// Credentials are the inputs needed to open a backend session.
type Credentials struct {
	Driver   string
	URL      string
	Username string
	Password string
	Role     string
}
