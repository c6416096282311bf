// Package sandbox restricts filesystem access for the whole process using
// Linux Landlock. The workspace stays read-write; toolchain caches and
// system directories stay readable so spawned commands keep working. On
// non-Linux systems or kernels without Landlock, restriction is a no-op.
package sandbox

// Access is the level of filesystem access granted to a path.
type Access int

const (
	// ReadOnly grants reading files and listing directories.
	ReadOnly Access = iota
	// ReadWrite additionally grants writing, creating, and removing.
	ReadWrite
)

// PathGrant pairs a path with its access level.
type PathGrant struct {
	Path   string
	Access Access
}

// Config holds extra grants beyond the built-in defaults.
type Config struct {
	ExtraReadOnly  []string
	ExtraReadWrite []string
	Disabled       bool
}
