package rpc

import (
	"fmt"
)

// This file implements the SRVSVC (Server Service) marshalling for the two
// share calls the scanner relies on.
//
// Reference: [MS-SRVS] Server Service Remote Protocol

// =============================================================================
// SRVSVC Constants
// =============================================================================

// SRVSVCInterfaceUUID is 4b324fc8-1670-01d3-1278-5a47bf6ee188
var SRVSVCInterfaceUUID = [16]byte{
	0xc8, 0x4f, 0x32, 0x4b, // 4b324fc8
	0x70, 0x16, // 1670
	0xd3, 0x01, // 01d3
	0x12, 0x78, // 1278
	0x5a, 0x47, 0xbf, 0x6e, 0xe1, 0x88, // 5a47bf6ee188
}

// SRVSVCInterfaceVersion is the interface version (3.0)
const SRVSVCInterfaceVersion uint32 = 3

// NDRTransferSyntaxUUID is 8a885d04-1ceb-11c9-9fe8-08002b104860
var NDRTransferSyntaxUUID = [16]byte{
	0x04, 0x5d, 0x88, 0x8a, // 8a885d04
	0xeb, 0x1c, // 1ceb
	0xc9, 0x11, // 11c9
	0x9f, 0xe8, // 9fe8
	0x08, 0x00, 0x2b, 0x10, 0x48, 0x60, // 08002b104860
}

// NDRTransferSyntaxVersion is the NDR 2.0 transfer syntax version
const NDRTransferSyntaxVersion uint32 = 2

// SRVSVC Operation Numbers [MS-SRVS Section 3.1.4]
const (
	OpNetrShareEnum    uint16 = 15
	OpNetrShareGetInfo uint16 = 16
)

// Share Types [MS-SRVS Section 2.2.2.4]
const (
	STYPE_DISKTREE  uint32 = 0x00000000
	STYPE_PRINTQ    uint32 = 0x00000001
	STYPE_DEVICE    uint32 = 0x00000002
	STYPE_IPC       uint32 = 0x00000003
	STYPE_SPECIAL   uint32 = 0x80000000 // ADMIN$, IPC$, C$ ...
	STYPE_TEMPORARY uint32 = 0x40000000
)

// MaxPreferredLength asks the server to return all entries in one page.
const MaxPreferredLength uint32 = 0xFFFFFFFF

// =============================================================================
// Share Information Structures
// =============================================================================

// ShareInfo1 represents SHARE_INFO_1 [MS-SRVS Section 2.2.4.23]
type ShareInfo1 struct {
	Name    string
	Type    uint32
	Comment string
}

// ShareInfo502 represents SHARE_INFO_502_I [MS-SRVS Section 2.2.4.26]
type ShareInfo502 struct {
	Name               string
	Type               uint32
	Comment            string
	Permissions        uint32
	MaxUses            uint32
	CurrentUses        uint32
	Path               string
	SecurityDescriptor []byte
}

// ShareEnumResult is one page of a NetrShareEnum call.
type ShareEnumResult struct {
	Shares       []ShareInfo1
	TotalEntries uint32
	ResumeHandle uint32
	Status       uint32 // NERR_Success or ERROR_MORE_DATA
}

// More reports whether the server has entries beyond this page.
func (r *ShareEnumResult) More() bool {
	return r.Status == ERROR_MORE_DATA
}

// =============================================================================
// NetrShareEnum (opnum 15) [MS-SRVS Section 3.1.4.8]
// =============================================================================

// ShareEnumRequest holds the decoded input parameters of NetrShareEnum.
type ShareEnumRequest struct {
	ServerName   string
	Level        uint32
	PrefMaxLen   uint32
	ResumeHandle uint32
}

// EncodeShareEnumRequest marshals the NetrShareEnum input parameters:
//
//	[in,string,unique] SRVSVC_HANDLE ServerName
//	[in,out] LPSHARE_ENUM_STRUCT InfoStruct
//	[in] DWORD PreferedMaximumLength
//	[in,out,unique] DWORD* ResumeHandle
func EncodeShareEnumRequest(serverName string, level, prefMaxLen, resumeHandle uint32) []byte {
	e := NewEncoder()
	e.UniqueString(serverName)

	// SHARE_ENUM_STRUCT: Level + union switch + container pointer
	e.Uint32(level)
	e.Uint32(level)
	e.Pointer(true)
	// Empty container: EntriesRead + null Buffer
	e.Uint32(0)
	e.Pointer(false)

	e.Uint32(prefMaxLen)

	e.Pointer(true)
	e.Uint32(resumeHandle)

	return e.Bytes()
}

// DecodeShareEnumRequest unmarshals the NetrShareEnum input parameters.
func DecodeShareEnumRequest(stub []byte) (*ShareEnumRequest, error) {
	d := NewDecoder(stub)
	req := &ShareEnumRequest{}

	if d.Pointer() {
		req.ServerName = d.String()
	}

	req.Level = d.Uint32()
	if sw := d.Uint32(); d.Err() == nil && sw != req.Level {
		return nil, fmt.Errorf("share enum: union switch %d does not match level %d", sw, req.Level)
	}
	if d.Pointer() {
		entries := d.Uint32()
		if d.Pointer() && entries > 0 {
			return nil, fmt.Errorf("share enum: populated input container is not supported")
		}
	}

	req.PrefMaxLen = d.Uint32()
	if d.Pointer() {
		req.ResumeHandle = d.Uint32()
	}

	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("share enum request: %w", err)
	}
	return req, nil
}

// EncodeShareEnumResponse marshals the NetrShareEnum output for level 1:
//
//	Level, switch, container pointer
//	EntriesRead, Buffer pointer
//	[MaxCount, N x (name ptr, type, remark ptr), deferred strings]
//	TotalEntries, ResumeHandle pointer + value, return status
func EncodeShareEnumResponse(shares []ShareInfo1, total, resumeHandle, status uint32) []byte {
	e := NewEncoder()

	e.Uint32(1)
	e.Uint32(1)
	e.Pointer(true)

	e.Uint32(uint32(len(shares)))
	e.Pointer(len(shares) > 0)

	if len(shares) > 0 {
		e.Uint32(uint32(len(shares)))
		for _, s := range shares {
			e.Pointer(true)
			e.Uint32(s.Type)
			e.Pointer(true)
		}
		for _, s := range shares {
			e.String(s.Name)
			e.String(s.Comment)
		}
	}

	e.Uint32(total)
	e.Pointer(true)
	e.Uint32(resumeHandle)
	e.Uint32(status)

	return e.Bytes()
}

// DecodeShareEnumResponse unmarshals one NetrShareEnum level 1 response page.
// A return value other than NERR_Success or ERROR_MORE_DATA yields a
// *StatusError.
func DecodeShareEnumResponse(stub []byte) (*ShareEnumResult, error) {
	d := NewDecoder(stub)
	res := &ShareEnumResult{}

	level := d.Uint32()
	d.Uint32() // union switch
	if d.Err() == nil && level != 1 {
		return nil, fmt.Errorf("share enum response: unexpected level %d", level)
	}

	if d.Pointer() {
		entries := d.Uint32()
		if d.Pointer() {
			count := d.Uint32()
			if d.Err() == nil && count != entries {
				return nil, fmt.Errorf("share enum response: array count %d does not match entries read %d", count, entries)
			}
			// Each fixed part is 12 bytes; reject counts the stub cannot hold.
			if d.Err() == nil && uint64(count)*12 > uint64(d.Remaining()) {
				return nil, fmt.Errorf("share enum response: %w: %d entries", ErrShortBuffer, count)
			}

			type fixed struct {
				name, comment bool
				typ           uint32
			}
			parts := make([]fixed, 0, count)
			for i := uint32(0); i < count && d.Err() == nil; i++ {
				var f fixed
				f.name = d.Pointer()
				f.typ = d.Uint32()
				f.comment = d.Pointer()
				parts = append(parts, f)
			}
			for _, f := range parts {
				var s ShareInfo1
				s.Type = f.typ
				if f.name {
					s.Name = d.String()
				}
				if f.comment {
					s.Comment = d.String()
				}
				res.Shares = append(res.Shares, s)
			}
		}
	}

	res.TotalEntries = d.Uint32()
	if d.Pointer() {
		res.ResumeHandle = d.Uint32()
	}
	res.Status = d.Uint32()

	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("share enum response: %w", err)
	}
	if res.Status != NERR_Success && res.Status != ERROR_MORE_DATA {
		return nil, &StatusError{Op: "NetrShareEnum", Status: res.Status}
	}
	return res, nil
}

// =============================================================================
// NetrShareGetInfo (opnum 16) [MS-SRVS Section 3.1.4.10]
// =============================================================================

// ShareGetInfoRequest holds the decoded input parameters of NetrShareGetInfo.
type ShareGetInfoRequest struct {
	ServerName string
	NetName    string
	Level      uint32
}

// EncodeShareGetInfoRequest marshals the NetrShareGetInfo input parameters:
//
//	[in,string,unique] SRVSVC_HANDLE ServerName
//	[in,string] WCHAR* NetName
//	[in] DWORD Level
func EncodeShareGetInfoRequest(serverName, netName string, level uint32) []byte {
	e := NewEncoder()
	e.UniqueString(serverName)
	e.String(netName)
	e.Uint32(level)
	return e.Bytes()
}

// DecodeShareGetInfoRequest unmarshals the NetrShareGetInfo input parameters.
func DecodeShareGetInfoRequest(stub []byte) (*ShareGetInfoRequest, error) {
	d := NewDecoder(stub)
	req := &ShareGetInfoRequest{}

	if d.Pointer() {
		req.ServerName = d.String()
	}
	req.NetName = d.String()
	req.Level = d.Uint32()

	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("share get info request: %w", err)
	}
	return req, nil
}

// encodeShareGetInfo502Response marshals the NetrShareGetInfo output for
// level 502. A nil info encodes a null union arm, used with error statuses.
func encodeShareGetInfo502Response(info *ShareInfo502, status uint32) []byte {
	e := NewEncoder()

	e.Uint32(502)
	e.Pointer(info != nil)

	if info != nil {
		e.Pointer(true)
		e.Uint32(info.Type)
		e.Pointer(true)
		e.Uint32(info.Permissions)
		e.Uint32(info.MaxUses)
		e.Uint32(info.CurrentUses)
		e.Pointer(true)
		e.Pointer(false) // password
		e.Uint32(uint32(len(info.SecurityDescriptor)))
		e.Pointer(len(info.SecurityDescriptor) > 0)

		e.String(info.Name)
		e.String(info.Comment)
		e.String(info.Path)
		if len(info.SecurityDescriptor) > 0 {
			e.ByteArray(info.SecurityDescriptor)
		}
	}

	e.Uint32(status)
	return e.Bytes()
}

// DecodeShareGetInfoResponse unmarshals a NetrShareGetInfo level 502
// response. A non-success return value yields a *StatusError.
func DecodeShareGetInfoResponse(stub []byte) (*ShareInfo502, error) {
	d := NewDecoder(stub)

	level := d.Uint32()
	present := d.Pointer()

	var info *ShareInfo502
	if present {
		if d.Err() == nil && level != 502 {
			return nil, fmt.Errorf("share get info response: unexpected level %d", level)
		}
		info = &ShareInfo502{}
		hasName := d.Pointer()
		info.Type = d.Uint32()
		hasRemark := d.Pointer()
		info.Permissions = d.Uint32()
		info.MaxUses = d.Uint32()
		info.CurrentUses = d.Uint32()
		hasPath := d.Pointer()
		hasPasswd := d.Pointer()
		d.Uint32() // reserved: security descriptor length
		hasSD := d.Pointer()

		if hasName {
			info.Name = d.String()
		}
		if hasRemark {
			info.Comment = d.String()
		}
		if hasPath {
			info.Path = d.String()
		}
		if hasPasswd {
			_ = d.String()
		}
		if hasSD {
			info.SecurityDescriptor = d.ByteArray()
		}
	}

	status := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("share get info response: %w", err)
	}
	if status != NERR_Success {
		return nil, &StatusError{Op: "NetrShareGetInfo", Status: status}
	}
	if info == nil {
		return nil, fmt.Errorf("share get info response: success without share information")
	}
	return info, nil
}
