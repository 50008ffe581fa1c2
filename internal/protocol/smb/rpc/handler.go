package rpc

import (
	"strings"

	"github.com/marmos91/sharescan/internal/logger"
)

// =============================================================================
// SRVSVC Handler
// =============================================================================

// ServerShare is a share exported by the in-memory SRVSVC handler.
type ServerShare struct {
	ShareInfo502

	// InfoStatus is returned by NetrShareGetInfo for this share.
	// Any value other than NERR_Success withholds the share information.
	InfoStatus uint32
}

// Handler answers SRVSVC calls from a fixed share list. It backs offline
// fixtures and loopback tests of the client.
type Handler struct {
	shares     []ServerShare
	pageSize   int
	enumStatus uint32
	maxFrag    int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPageSize limits the number of entries returned per NetrShareEnum page.
// Zero returns every entry in one page.
func WithPageSize(n int) HandlerOption {
	return func(h *Handler) {
		h.pageSize = n
	}
}

// WithEnumStatus makes NetrShareEnum fail with the given status.
func WithEnumStatus(status uint32) HandlerOption {
	return func(h *Handler) {
		h.enumStatus = status
	}
}

// WithMaxFrag caps the size of response fragments.
func WithMaxFrag(n int) HandlerOption {
	return func(h *Handler) {
		h.maxFrag = n
	}
}

// NewHandler creates a handler serving the given shares in order.
func NewHandler(shares []ServerShare, opts ...HandlerOption) *Handler {
	h := &Handler{
		shares:  shares,
		maxFrag: DefaultMaxFrag,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleBind processes a BIND request and returns a BIND_ACK
func (h *Handler) HandleBind(req *BindRequest) []byte {
	results := make([]ContextResult, 0, len(req.ContextList))
	for _, ctx := range req.ContextList {
		results = append(results, negotiate(ctx))
	}

	if req.MaxRecvFrag > 0 && int(req.MaxRecvFrag) < h.maxFrag {
		h.maxFrag = int(req.MaxRecvFrag)
	}

	ack := &BindAck{
		MaxXmitFrag:  uint16(h.maxFrag),
		MaxRecvFrag:  uint16(h.maxFrag),
		AssocGroupID: 0x12345678,
		SecAddr:      "\\PIPE\\srvsvc",
		Results:      results,
	}

	return ack.Encode(req.Header.CallID)
}

// negotiate accepts a context that binds SRVSVC over NDR.
func negotiate(ctx PresentationContext) ContextResult {
	const (
		resultProviderRejection uint16 = 2
		reasonAbstractSyntax    uint16 = 1
		reasonTransferSyntax    uint16 = 2
	)

	if ctx.AbstractSyntax.UUID != SRVSVCInterfaceUUID {
		return ContextResult{Result: resultProviderRejection, Reason: reasonAbstractSyntax}
	}
	for _, ts := range ctx.TransferSyntaxes {
		if ts.UUID == NDRTransferSyntaxUUID {
			return ContextResult{TransferSyntax: ts}
		}
	}
	return ContextResult{Result: resultProviderRejection, Reason: reasonTransferSyntax}
}

// HandleRequest processes an RPC request and returns the response fragments.
func (h *Handler) HandleRequest(req *Request) [][]byte {
	var stub []byte

	switch req.OpNum {
	case OpNetrShareEnum:
		in, err := DecodeShareEnumRequest(req.StubData)
		if err != nil {
			logger.Debug("Rejecting malformed NetrShareEnum", logger.Err(err))
			return [][]byte{encodeFault(req.Header.CallID, FaultProtocolError)}
		}
		stub = h.shareEnum(in)

	case OpNetrShareGetInfo:
		in, err := DecodeShareGetInfoRequest(req.StubData)
		if err != nil {
			logger.Debug("Rejecting malformed NetrShareGetInfo", logger.Err(err))
			return [][]byte{encodeFault(req.Header.CallID, FaultProtocolError)}
		}
		stub = h.shareGetInfo(in)

	default:
		return [][]byte{encodeFault(req.Header.CallID, FaultOpRangeError)}
	}

	resp := &Response{
		ContextID: req.ContextID,
		StubData:  stub,
	}
	return resp.EncodeFragments(req.Header.CallID, h.maxFrag)
}

// shareEnum serves one page starting at the resume handle, which is the
// index of the next share to return.
func (h *Handler) shareEnum(in *ShareEnumRequest) []byte {
	total := uint32(len(h.shares))

	if h.enumStatus != NERR_Success {
		return EncodeShareEnumResponse(nil, 0, 0, h.enumStatus)
	}
	if in.Level != 1 {
		return EncodeShareEnumResponse(nil, 0, 0, ERROR_INVALID_LEVEL)
	}

	start := int(in.ResumeHandle)
	if start > len(h.shares) {
		start = len(h.shares)
	}
	end := len(h.shares)
	if h.pageSize > 0 && start+h.pageSize < end {
		end = start + h.pageSize
	}

	page := make([]ShareInfo1, 0, end-start)
	for _, s := range h.shares[start:end] {
		page = append(page, ShareInfo1{Name: s.Name, Type: s.Type, Comment: s.Comment})
	}

	status := NERR_Success
	resume := uint32(0)
	if end < len(h.shares) {
		status = ERROR_MORE_DATA
		resume = uint32(end)
	}

	logger.Debug("Serving share enum page", logger.Entries(len(page)), "resume", resume)
	return EncodeShareEnumResponse(page, total, resume, status)
}

func (h *Handler) shareGetInfo(in *ShareGetInfoRequest) []byte {
	if in.Level != 502 {
		return encodeShareGetInfo502Response(nil, ERROR_INVALID_LEVEL)
	}
	for i := range h.shares {
		s := &h.shares[i]
		if !strings.EqualFold(s.Name, in.NetName) {
			continue
		}
		if s.InfoStatus != NERR_Success {
			return encodeShareGetInfo502Response(nil, s.InfoStatus)
		}
		info := s.ShareInfo502
		return encodeShareGetInfo502Response(&info, NERR_Success)
	}
	return encodeShareGetInfo502Response(nil, NERR_NetNameNotFound)
}
