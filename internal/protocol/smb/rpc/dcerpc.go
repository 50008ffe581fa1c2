// Package rpc implements the DCE/RPC connection-oriented protocol as it is
// carried over SMB named pipes, together with the SRVSVC interface used for
// share enumeration.
//
// Both sides are implemented: the client used by the scanner, and a small
// server-side handler that answers SRVSVC calls from an in-memory share list.
//
// Reference: [MS-RPCE] Remote Procedure Call Protocol Extensions
// Reference: [C706] DCE 1.1: Remote Procedure Call
package rpc

import (
	"encoding/binary"
	"fmt"
)

// =============================================================================
// DCE/RPC Constants
// =============================================================================

// PDU Types [C706 Section 12.6.4.14]
const (
	PDURequest  uint8 = 0  // Request PDU
	PDUResponse uint8 = 2  // Response PDU
	PDUFault    uint8 = 3  // Fault PDU
	PDUBind     uint8 = 11 // Bind PDU
	PDUBindAck  uint8 = 12 // Bind_ack PDU
	PDUBindNak  uint8 = 13 // Bind_nak PDU
)

// PDU Flags [C706 Section 12.6.3.1]
const (
	FlagFirstFrag uint8 = 0x01 // First fragment
	FlagLastFrag  uint8 = 0x02 // Last fragment
)

const (
	// HeaderSize is the size of the common DCE/RPC header
	HeaderSize = 16

	// requestHeaderSize covers the common header plus alloc_hint, context id
	// and opnum (or cancel count) of request, response and fault PDUs.
	requestHeaderSize = HeaderSize + 8

	// DefaultMaxFrag is the fragment size negotiated by Windows clients.
	DefaultMaxFrag = 4280
)

// dataRepLittleEndian is the NDR data representation: little-endian, ASCII, IEEE float.
var dataRepLittleEndian = [4]byte{0x10, 0x00, 0x00, 0x00}

// =============================================================================
// DCE/RPC Header
// =============================================================================

// Header represents the common DCE/RPC PDU header [C706 Section 12.6.3.1]
//
//	Offset  Size  Field
//	0       1     rpc_vers (5)
//	1       1     rpc_vers_minor (0 or 1)
//	2       1     ptype (PDU type)
//	3       1     pfc_flags (flags)
//	4       4     packed_drep (data representation)
//	8       2     frag_length (total fragment length)
//	10      2     auth_length (auth verifier length)
//	12      4     call_id (call identifier)
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	PacketType   uint8
	Flags        uint8
	DataRep      [4]byte
	FragLength   uint16
	AuthLength   uint16
	CallID       uint32
}

func newHeader(ptype, flags uint8, fragLen int, callID uint32) Header {
	return Header{
		VersionMajor: 5,
		VersionMinor: 0,
		PacketType:   ptype,
		Flags:        flags,
		DataRep:      dataRepLittleEndian,
		FragLength:   uint16(fragLen),
		CallID:       callID,
	}
}

// ParseHeader parses a DCE/RPC header from bytes
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("data too short for DCE/RPC header: %d bytes", len(data))
	}

	h := &Header{
		VersionMajor: data[0],
		VersionMinor: data[1],
		PacketType:   data[2],
		Flags:        data[3],
		FragLength:   binary.LittleEndian.Uint16(data[8:10]),
		AuthLength:   binary.LittleEndian.Uint16(data[10:12]),
		CallID:       binary.LittleEndian.Uint32(data[12:16]),
	}
	copy(h.DataRep[:], data[4:8])

	if h.VersionMajor != 5 {
		return nil, fmt.Errorf("unsupported DCE/RPC version %d.%d", h.VersionMajor, h.VersionMinor)
	}
	if h.DataRep[0]&0xF0 != 0x10 {
		return nil, fmt.Errorf("unsupported data representation %#x (big-endian peers are not supported)", h.DataRep[0])
	}
	if int(h.FragLength) < HeaderSize {
		return nil, fmt.Errorf("invalid fragment length %d", h.FragLength)
	}

	return h, nil
}

// Encode serializes the header to bytes
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf
}

func (h *Header) put(buf []byte) {
	buf[0] = h.VersionMajor
	buf[1] = h.VersionMinor
	buf[2] = h.PacketType
	buf[3] = h.Flags
	copy(buf[4:8], h.DataRep[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.FragLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.AuthLength)
	binary.LittleEndian.PutUint32(buf[12:16], h.CallID)
}

// =============================================================================
// Bind PDU
// =============================================================================

// SyntaxID represents a UUID + version
type SyntaxID struct {
	UUID    [16]byte
	Version uint32
}

// PresentationContext represents a presentation context in a Bind PDU
type PresentationContext struct {
	ContextID        uint16
	AbstractSyntax   SyntaxID
	TransferSyntaxes []SyntaxID
}

// BindRequest represents a DCE/RPC Bind PDU [C706 Section 12.6.4.3]
type BindRequest struct {
	Header       Header
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	ContextList  []PresentationContext
}

// Encode serializes a Bind PDU with the given call id
func (b *BindRequest) Encode(callID uint32) []byte {
	size := HeaderSize + 12
	for _, c := range b.ContextList {
		size += 4 + 20 + 20*len(c.TransferSyntaxes)
	}

	buf := make([]byte, size)
	hdr := newHeader(PDUBind, FlagFirstFrag|FlagLastFrag, size, callID)
	hdr.put(buf)

	binary.LittleEndian.PutUint16(buf[16:18], b.MaxXmitFrag)
	binary.LittleEndian.PutUint16(buf[18:20], b.MaxRecvFrag)
	binary.LittleEndian.PutUint32(buf[20:24], b.AssocGroupID)
	buf[24] = uint8(len(b.ContextList))

	offset := 28
	for _, c := range b.ContextList {
		binary.LittleEndian.PutUint16(buf[offset:], c.ContextID)
		buf[offset+2] = uint8(len(c.TransferSyntaxes))
		offset += 4
		offset = putSyntax(buf, offset, c.AbstractSyntax)
		for _, ts := range c.TransferSyntaxes {
			offset = putSyntax(buf, offset, ts)
		}
	}

	return buf
}

// ParseBindRequest parses a Bind PDU
func ParseBindRequest(data []byte) (*BindRequest, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.PacketType != PDUBind {
		return nil, fmt.Errorf("not a bind PDU: type %d", hdr.PacketType)
	}
	if len(data) < HeaderSize+12 || len(data) < int(hdr.FragLength) {
		return nil, fmt.Errorf("bind request too short: %d bytes", len(data))
	}
	data = data[:hdr.FragLength]

	req := &BindRequest{
		Header:       *hdr,
		MaxXmitFrag:  binary.LittleEndian.Uint16(data[16:18]),
		MaxRecvFrag:  binary.LittleEndian.Uint16(data[18:20]),
		AssocGroupID: binary.LittleEndian.Uint32(data[20:24]),
	}

	numContexts := int(data[24])
	offset := 28
	for i := 0; i < numContexts; i++ {
		if offset+24 > len(data) {
			return nil, fmt.Errorf("bind request truncated in context %d", i)
		}
		ctx := PresentationContext{
			ContextID: binary.LittleEndian.Uint16(data[offset:]),
		}
		numTransfer := int(data[offset+2])
		offset += 4
		ctx.AbstractSyntax, offset = getSyntax(data, offset)

		if offset+20*numTransfer > len(data) {
			return nil, fmt.Errorf("bind request truncated in transfer syntaxes of context %d", i)
		}
		for j := 0; j < numTransfer; j++ {
			var ts SyntaxID
			ts, offset = getSyntax(data, offset)
			ctx.TransferSyntaxes = append(ctx.TransferSyntaxes, ts)
		}
		req.ContextList = append(req.ContextList, ctx)
	}

	return req, nil
}

func putSyntax(buf []byte, offset int, s SyntaxID) int {
	copy(buf[offset:], s.UUID[:])
	binary.LittleEndian.PutUint32(buf[offset+16:], s.Version)
	return offset + 20
}

func getSyntax(data []byte, offset int) (SyntaxID, int) {
	var s SyntaxID
	copy(s.UUID[:], data[offset:offset+16])
	s.Version = binary.LittleEndian.Uint32(data[offset+16:])
	return s, offset + 20
}

// =============================================================================
// Bind Ack PDU
// =============================================================================

// BindAck represents a DCE/RPC Bind Ack PDU [C706 Section 12.6.4.4]
type BindAck struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	SecAddr      string // Secondary address (e.g., "\PIPE\srvsvc")
	Results      []ContextResult
}

// ContextResult represents the result of a presentation context negotiation
type ContextResult struct {
	Result         uint16 // 0 = acceptance
	Reason         uint16
	TransferSyntax SyntaxID
}

// Encode serializes a Bind Ack PDU
func (ba *BindAck) Encode(callID uint32) []byte {
	secAddrLen := len(ba.SecAddr) + 1

	// header(16) + max_xmit(2) + max_recv(2) + assoc_group(4) + sec_len(2) + sec_addr
	offsetAfterSecAddr := 26 + secAddrLen
	secAddrPadding := (4 - (offsetAfterSecAddr % 4)) % 4

	fragLen := offsetAfterSecAddr + secAddrPadding + 4 + len(ba.Results)*24

	buf := make([]byte, fragLen)
	hdr := newHeader(PDUBindAck, FlagFirstFrag|FlagLastFrag, fragLen, callID)
	hdr.put(buf)

	offset := 16
	binary.LittleEndian.PutUint16(buf[offset:], ba.MaxXmitFrag)
	binary.LittleEndian.PutUint16(buf[offset+2:], ba.MaxRecvFrag)
	binary.LittleEndian.PutUint32(buf[offset+4:], ba.AssocGroupID)
	offset += 8

	binary.LittleEndian.PutUint16(buf[offset:], uint16(secAddrLen))
	offset += 2
	copy(buf[offset:], ba.SecAddr)
	offset += secAddrLen + secAddrPadding

	buf[offset] = uint8(len(ba.Results))
	offset += 4 // num_results(1) + reserved(3)

	for _, r := range ba.Results {
		binary.LittleEndian.PutUint16(buf[offset:], r.Result)
		binary.LittleEndian.PutUint16(buf[offset+2:], r.Reason)
		offset = putSyntax(buf, offset+4, r.TransferSyntax)
	}

	return buf
}

// ParseBindAck parses a Bind Ack PDU
func ParseBindAck(data []byte) (*BindAck, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.PacketType != PDUBindAck {
		return nil, fmt.Errorf("not a bind ack PDU: type %d", hdr.PacketType)
	}
	if len(data) < int(hdr.FragLength) || hdr.FragLength < 26 {
		return nil, fmt.Errorf("bind ack too short: %d bytes", len(data))
	}
	data = data[:hdr.FragLength]

	ack := &BindAck{
		MaxXmitFrag:  binary.LittleEndian.Uint16(data[16:18]),
		MaxRecvFrag:  binary.LittleEndian.Uint16(data[18:20]),
		AssocGroupID: binary.LittleEndian.Uint32(data[20:24]),
	}

	secAddrLen := int(binary.LittleEndian.Uint16(data[24:26]))
	offset := 26
	if offset+secAddrLen > len(data) {
		return nil, fmt.Errorf("bind ack secondary address overruns PDU")
	}
	if secAddrLen > 0 {
		ack.SecAddr = string(data[offset : offset+secAddrLen-1])
	}
	offset += secAddrLen
	offset += (4 - offset%4) % 4

	if offset+4 > len(data) {
		return nil, fmt.Errorf("bind ack missing result list")
	}
	numResults := int(data[offset])
	offset += 4
	if offset+24*numResults > len(data) {
		return nil, fmt.Errorf("bind ack result list overruns PDU")
	}
	for i := 0; i < numResults; i++ {
		r := ContextResult{
			Result: binary.LittleEndian.Uint16(data[offset:]),
			Reason: binary.LittleEndian.Uint16(data[offset+2:]),
		}
		r.TransferSyntax, offset = getSyntax(data, offset+4)
		ack.Results = append(ack.Results, r)
	}

	return ack, nil
}

// =============================================================================
// Request PDU
// =============================================================================

// Request represents a DCE/RPC Request PDU [C706 Section 12.6.4.9]
type Request struct {
	Header    Header
	AllocHint uint32
	ContextID uint16
	OpNum     uint16
	StubData  []byte
}

// Encode serializes a single-fragment Request PDU
func (r *Request) Encode(callID uint32) []byte {
	fragLen := requestHeaderSize + len(r.StubData)

	buf := make([]byte, fragLen)
	hdr := newHeader(PDURequest, FlagFirstFrag|FlagLastFrag, fragLen, callID)
	hdr.put(buf)

	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(r.StubData)))
	binary.LittleEndian.PutUint16(buf[20:22], r.ContextID)
	binary.LittleEndian.PutUint16(buf[22:24], r.OpNum)
	copy(buf[24:], r.StubData)

	return buf
}

// ParseRequest parses a Request PDU
func ParseRequest(data []byte) (*Request, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.PacketType != PDURequest {
		return nil, fmt.Errorf("not a request PDU: type %d", hdr.PacketType)
	}
	if len(data) < requestHeaderSize {
		return nil, fmt.Errorf("request PDU too short")
	}

	req := &Request{
		Header:    *hdr,
		AllocHint: binary.LittleEndian.Uint32(data[16:20]),
		ContextID: binary.LittleEndian.Uint16(data[20:22]),
		OpNum:     binary.LittleEndian.Uint16(data[22:24]),
	}

	stubEnd := int(hdr.FragLength) - int(hdr.AuthLength)
	if stubEnd > requestHeaderSize && stubEnd <= len(data) {
		req.StubData = data[requestHeaderSize:stubEnd]
	}

	return req, nil
}

// =============================================================================
// Response PDU
// =============================================================================

// Response represents a DCE/RPC Response PDU [C706 Section 12.6.4.10]
type Response struct {
	Header      Header
	AllocHint   uint32
	ContextID   uint16
	CancelCount uint8
	StubData    []byte
}

// EncodeFragments serializes the response, splitting the stub data so that
// no fragment exceeds maxFrag bytes.
func (r *Response) EncodeFragments(callID uint32, maxFrag int) [][]byte {
	chunk := maxFrag - requestHeaderSize
	if chunk <= 0 {
		chunk = DefaultMaxFrag - requestHeaderSize
	}

	var frags [][]byte
	stub := r.StubData
	first := true
	for {
		n := min(len(stub), chunk)
		last := n == len(stub)

		var flags uint8
		if first {
			flags |= FlagFirstFrag
		}
		if last {
			flags |= FlagLastFrag
		}

		fragLen := requestHeaderSize + n
		buf := make([]byte, fragLen)
		hdr := newHeader(PDUResponse, flags, fragLen, callID)
		hdr.put(buf)
		binary.LittleEndian.PutUint32(buf[16:20], uint32(len(stub)))
		binary.LittleEndian.PutUint16(buf[20:22], r.ContextID)
		buf[22] = r.CancelCount
		copy(buf[24:], stub[:n])

		frags = append(frags, buf)
		stub = stub[n:]
		first = false
		if last {
			return frags
		}
	}
}

// Encode serializes a single-fragment Response PDU
func (r *Response) Encode(callID uint32) []byte {
	return r.EncodeFragments(callID, requestHeaderSize+len(r.StubData))[0]
}

// ParseResponse parses one Response PDU fragment
func ParseResponse(data []byte) (*Response, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.PacketType != PDUResponse {
		return nil, fmt.Errorf("not a response PDU: type %d", hdr.PacketType)
	}
	if len(data) < requestHeaderSize || len(data) < int(hdr.FragLength) {
		return nil, fmt.Errorf("response PDU too short: %d bytes", len(data))
	}

	resp := &Response{
		Header:      *hdr,
		AllocHint:   binary.LittleEndian.Uint32(data[16:20]),
		ContextID:   binary.LittleEndian.Uint16(data[20:22]),
		CancelCount: data[22],
	}

	stubEnd := int(hdr.FragLength) - int(hdr.AuthLength)
	if stubEnd < requestHeaderSize {
		return nil, fmt.Errorf("response auth trailer overruns PDU")
	}
	resp.StubData = data[requestHeaderSize:stubEnd]

	return resp, nil
}

// =============================================================================
// Fault PDU
// =============================================================================

// Fault status codes returned by the server-side handler.
const (
	FaultOpRangeError   uint32 = 0x1C010002 // nca_op_rng_error
	FaultProtocolError  uint32 = 0x1C01000B // nca_proto_error
	FaultUnsupportedIfc uint32 = 0x1C010003 // nca_unk_if
)

// FaultError is returned when the peer answers a call with a Fault PDU.
type FaultError struct {
	Status uint32
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("rpc fault: %s", StatusText(e.Status))
}

// encodeFault builds a Fault PDU:
// header + alloc_hint(4) + context_id(2) + cancel_count(1) + reserved(1) + status(4) + reserved(4)
func encodeFault(callID uint32, status uint32) []byte {
	fragLen := HeaderSize + 16

	buf := make([]byte, fragLen)
	hdr := newHeader(PDUFault, FlagFirstFrag|FlagLastFrag, fragLen, callID)
	hdr.put(buf)
	binary.LittleEndian.PutUint32(buf[24:28], status)

	return buf
}

// parseFault extracts the status code of a Fault PDU.
func parseFault(data []byte) (*FaultError, error) {
	if len(data) < HeaderSize+12 {
		return nil, fmt.Errorf("fault PDU too short: %d bytes", len(data))
	}
	return &FaultError{Status: binary.LittleEndian.Uint32(data[24:28])}, nil
}
