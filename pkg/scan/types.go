package scan

import "github.com/marmos91/sharescan/internal/protocol/smb/rpc"

// ShareType is the category of a share, derived from its STYPE code.
type ShareType string

const (
	ShareTypeDisk       ShareType = "Disk"
	ShareTypePrintQueue ShareType = "PrintQueue"
	ShareTypeDevice     ShareType = "Device"
	ShareTypeIPC        ShareType = "IPC"
	ShareTypeOther      ShareType = "Other"
)

// ShareTypeOf categorises a raw type code. The STYPE_SPECIAL and
// STYPE_TEMPORARY flags are ignored.
func ShareTypeOf(code uint32) ShareType {
	switch code &^ (rpc.STYPE_SPECIAL | rpc.STYPE_TEMPORARY) {
	case rpc.STYPE_DISKTREE:
		return ShareTypeDisk
	case rpc.STYPE_PRINTQ:
		return ShareTypePrintQueue
	case rpc.STYPE_DEVICE:
		return ShareTypeDevice
	case rpc.STYPE_IPC:
		return ShareTypeIPC
	default:
		return ShareTypeOther
	}
}

// PermissionLabel is the coarse access level granted by a share.
type PermissionLabel string

const (
	PermissionAll     PermissionLabel = "All"
	PermissionWrite   PermissionLabel = "Write"
	PermissionRead    PermissionLabel = "Read"
	PermissionUnknown PermissionLabel = "Unknown"
)

// Severity orders labels from most (3) to least (0) exposed. Unknown ranks
// above Read because nothing is known about the share.
func (p PermissionLabel) Severity() int {
	switch p {
	case PermissionAll:
		return 3
	case PermissionWrite:
		return 2
	case PermissionUnknown:
		return 1
	default:
		return 0
	}
}

// RiskNote is the human readable finding attached to a share.
type RiskNote string

const (
	NoteOpenToAll              RiskNote = "open to all"
	NoteWriteAllowed           RiskNote = "write allowed"
	NoteOK                     RiskNote = "ok"
	NoteAdministrative         RiskNote = "administrative share"
	NotePermissionsUnavailable RiskNote = "permissions unavailable"
)

// Risky reports whether the note flags a dangerous exposure.
func (n RiskNote) Risky() bool {
	return n == NoteOpenToAll || n == NoteWriteAllowed
}

// ShareRecord is one classified share of a scanned server.
type ShareRecord struct {
	Server     string          `json:"server" yaml:"server"`
	ShareName  string          `json:"share" yaml:"share"`
	ShareType  ShareType       `json:"type" yaml:"type"`
	Comment    string          `json:"comment" yaml:"comment"`
	Permission PermissionLabel `json:"permission" yaml:"permission"`
	Note       RiskNote        `json:"note" yaml:"note"`

	// Special is set when the server flagged the share STYPE_SPECIAL.
	Special bool `json:"special" yaml:"special"`
}

// Risky reports whether the share grants write or full access, including
// administrative shares whose note hides it.
func (r ShareRecord) Risky() bool {
	return r.Permission == PermissionAll || r.Permission == PermissionWrite
}

func isSpecial(code uint32) bool {
	return code&rpc.STYPE_SPECIAL != 0
}
