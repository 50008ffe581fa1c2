package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// =============================================================================
// SRVSVC Client Connection
// =============================================================================

// Conn is a client-side DCE/RPC association with the SRVSVC interface over
// a named pipe. Calls are serialized; a Conn is safe for concurrent use.
type Conn struct {
	mu      sync.Mutex
	rw      io.ReadWriteCloser
	callID  uint32
	bound   bool
	maxRecv int
	readBuf []byte
	pending []byte
}

// deadliner is implemented by transports that support I/O deadlines.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// NewConn wraps an open named pipe. Bind must be called before any call.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{
		rw:      rw,
		maxRecv: DefaultMaxFrag,
		readBuf: make([]byte, DefaultMaxFrag),
	}
}

// Bind negotiates the SRVSVC presentation context.
func (c *Conn) Bind(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		return nil
	}

	restore, err := c.applyDeadline(ctx)
	if err != nil {
		return err
	}
	defer restore()

	bind := &BindRequest{
		MaxXmitFrag: DefaultMaxFrag,
		MaxRecvFrag: DefaultMaxFrag,
		ContextList: []PresentationContext{{
			ContextID:        0,
			AbstractSyntax:   SyntaxID{UUID: SRVSVCInterfaceUUID, Version: SRVSVCInterfaceVersion},
			TransferSyntaxes: []SyntaxID{{UUID: NDRTransferSyntaxUUID, Version: NDRTransferSyntaxVersion}},
		}},
	}

	c.callID++
	if _, err := c.rw.Write(bind.Encode(c.callID)); err != nil {
		return fmt.Errorf("write bind: %w", err)
	}

	pdu, err := c.readPDU()
	if err != nil {
		return fmt.Errorf("read bind ack: %w", err)
	}

	hdr, err := ParseHeader(pdu)
	if err != nil {
		return err
	}
	switch hdr.PacketType {
	case PDUBindAck:
	case PDUBindNak:
		return errors.New("srvsvc bind rejected by server")
	default:
		return fmt.Errorf("unexpected PDU type %d in reply to bind", hdr.PacketType)
	}

	ack, err := ParseBindAck(pdu)
	if err != nil {
		return err
	}
	if len(ack.Results) == 0 || ack.Results[0].Result != 0 {
		return errors.New("srvsvc presentation context not accepted")
	}
	if ack.MaxXmitFrag > 0 && int(ack.MaxXmitFrag) < c.maxRecv {
		c.maxRecv = int(ack.MaxXmitFrag)
	}

	c.bound = true
	return nil
}

// Call performs one request and returns the reassembled response stub.
// A Fault PDU is returned as a *FaultError.
func (c *Conn) Call(ctx context.Context, opnum uint16, stub []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound {
		return nil, errors.New("rpc call before bind")
	}

	restore, err := c.applyDeadline(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()

	c.callID++
	callID := c.callID

	req := &Request{OpNum: opnum, StubData: stub}
	if _, err := c.rw.Write(req.Encode(callID)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var out []byte
	for {
		pdu, err := c.readPDU()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		hdr, err := ParseHeader(pdu)
		if err != nil {
			return nil, err
		}
		if hdr.CallID != callID {
			return nil, fmt.Errorf("response call id %d does not match request %d", hdr.CallID, callID)
		}

		switch hdr.PacketType {
		case PDUFault:
			fault, err := parseFault(pdu)
			if err != nil {
				return nil, err
			}
			return nil, fault
		case PDUResponse:
		default:
			return nil, fmt.Errorf("unexpected PDU type %d in reply to request", hdr.PacketType)
		}

		resp, err := ParseResponse(pdu)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.StubData...)

		if hdr.Flags&FlagLastFrag != 0 {
			return out, nil
		}
	}
}

// Close closes the underlying pipe.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rw.Close()
}

// ShareEnum requests one NetrShareEnum level 1 page.
func (c *Conn) ShareEnum(ctx context.Context, serverName string, prefMaxLen, resumeHandle uint32) (*ShareEnumResult, error) {
	stub, err := c.Call(ctx, OpNetrShareEnum, EncodeShareEnumRequest(serverName, 1, prefMaxLen, resumeHandle))
	if err != nil {
		return nil, err
	}
	return DecodeShareEnumResponse(stub)
}

// ShareGetInfo requests NetrShareGetInfo at level 502 for one share.
func (c *Conn) ShareGetInfo(ctx context.Context, serverName, netName string) (*ShareInfo502, error) {
	stub, err := c.Call(ctx, OpNetrShareGetInfo, EncodeShareGetInfoRequest(serverName, netName, 502))
	if err != nil {
		return nil, err
	}
	return DecodeShareGetInfoResponse(stub)
}

// readPDU returns the next complete fragment. Reads are issued with a
// full-fragment buffer since message-mode pipes reject short reads.
func (c *Conn) readPDU() ([]byte, error) {
	for {
		if len(c.pending) >= HeaderSize {
			hdr, err := ParseHeader(c.pending)
			if err != nil {
				return nil, err
			}
			if n := int(hdr.FragLength); len(c.pending) >= n {
				pdu := append([]byte(nil), c.pending[:n]...)
				c.pending = c.pending[n:]
				return pdu, nil
			}
		}

		n, err := c.rw.Read(c.readBuf)
		if n > 0 {
			c.pending = append(c.pending, c.readBuf[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
		return nil, io.ErrNoProgress
	}
}

// applyDeadline propagates the context deadline to the transport when it
// supports deadlines. The returned func clears it again.
func (c *Conn) applyDeadline(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dl, ok := c.rw.(deadliner)
	deadline, has := ctx.Deadline()
	if !ok || !has {
		return func() {}, nil
	}
	if err := dl.SetDeadline(deadline); err != nil {
		return func() {}, nil
	}
	return func() { _ = dl.SetDeadline(time.Time{}) }, nil
}
