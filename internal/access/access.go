// Package access defines DocPulse roles and the permissions each grants.
// The gateway enforces them per route; no other package checks roles.
package access

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

type Permission string

const (
	DocumentsRead   Permission = "documents:read"
	DocumentsWrite  Permission = "documents:write"
	DocumentsDelete Permission = "documents:delete"
	Search          Permission = "search"
	ReportsRead     Permission = "reports:read"
	ReportsGenerate Permission = "reports:generate"
	WorkspaceExport Permission = "workspace:export"
	WorkspaceImport Permission = "workspace:import"
	KeysManage      Permission = "keys:manage"
)

var grants = map[Role][]Permission{
	RoleAdmin: {
		DocumentsRead, DocumentsWrite, DocumentsDelete, Search, ReportsRead,
		ReportsGenerate, WorkspaceExport, WorkspaceImport, KeysManage,
	},
	RoleEditor: {
		DocumentsRead, DocumentsWrite, Search, ReportsRead, ReportsGenerate, WorkspaceExport,
	},
	RoleViewer: {
		DocumentsRead, Search, ReportsRead,
	},
}

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := grants[r]; !ok {
		return "", fmt.Errorf("unknown role %q (want admin, editor or viewer)", s)
	}
	return r, nil
}

// Permissions returns a copy of the permissions granted to r.
func (r Role) Permissions() []Permission {
	return slices.Clone(grants[r])
}

// Can reports whether r grants p. Unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	return slices.Contains(grants[r], p)
}
