package scan

import (
	"strings"

	"github.com/marmos91/sharescan/pkg/directory"
)

// Classify maps the outcome of a permission lookup to a label and note.
//
// A failed lookup yields Unknown. Otherwise full access is checked before
// write access. A name ending in "$" always gets the administrative note
// while keeping its label.
func Classify(name string, perms directory.Permissions, lookupErr error) (PermissionLabel, RiskNote) {
	var (
		label PermissionLabel
		note  RiskNote
	)

	switch {
	case lookupErr != nil:
		label, note = PermissionUnknown, NotePermissionsUnavailable
	case perms.GrantsAll():
		label, note = PermissionAll, NoteOpenToAll
	case perms.GrantsWrite():
		label, note = PermissionWrite, NoteWriteAllowed
	default:
		label, note = PermissionRead, NoteOK
	}

	if IsAdministrative(name) {
		note = NoteAdministrative
	}
	return label, note
}

// IsAdministrative reports whether a share name denotes a hidden
// administrative share.
func IsAdministrative(name string) bool {
	return strings.HasSuffix(name, "$")
}
