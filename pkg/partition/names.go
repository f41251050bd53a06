package partition

import (
	"fmt"
	"strings"
)

// Role identifies the purpose of a cache partition.
type Role string

const (
	// RoleStatic is the immutable, precached partition for the app shell.
	RoleStatic Role = "static"

	// RoleRuntime is the dynamic partition that grows via network traffic.
	RoleRuntime Role = "runtime"
)

// Name derives the deterministic partition name for a role and version tag.
// Format: "{role}-{version}". The same role and version always derive the
// same name; different versions always derive disjoint name sets.
//
// Example:
//
//	partition.Name(partition.RoleStatic, "v1") // "static-v1"
func Name(role Role, version string) string {
	return fmt.Sprintf("%s-%s", role, version)
}

// CurrentNames returns the two partition names belonging to a version tag,
// static first.
func CurrentNames(version string) []string {
	return []string{
		Name(RoleStatic, version),
		Name(RoleRuntime, version),
	}
}

// roleOf extracts the role prefix from a partition name for metric labels.
// Unknown prefixes are reported verbatim.
func roleOf(name string) string {
	role, _, found := strings.Cut(name, "-")
	if !found {
		return name
	}
	return role
}
