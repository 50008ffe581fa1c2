package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// =============================================================================
// In-memory Named Pipe
// =============================================================================

// ErrPipeClosed is returned by operations on a closed Pipe.
var ErrPipeClosed = errors.New("pipe closed")

// Pipe is an in-memory srvsvc named pipe. Each Write must carry whole PDUs;
// the handler's answers are buffered for subsequent Reads, the way a
// message-mode pipe behaves after FSCTL_PIPE_TRANSCEIVE.
type Pipe struct {
	mu         sync.Mutex
	handler    *Handler
	bound      bool
	closed     bool
	readBuffer bytes.Buffer
}

// NewPipe creates a pipe served by the given handler.
func NewPipe(handler *Handler) *Pipe {
	return &Pipe{handler: handler}
}

// Write handles data written by the client.
func (p *Pipe) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPipeClosed
	}

	for rest := data; len(rest) > 0; {
		hdr, err := ParseHeader(rest)
		if err != nil {
			return 0, err
		}
		if int(hdr.FragLength) > len(rest) {
			return 0, fmt.Errorf("partial PDU write: have %d of %d bytes", len(rest), hdr.FragLength)
		}
		pdu := rest[:hdr.FragLength]
		rest = rest[hdr.FragLength:]

		if err := p.process(hdr, pdu); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

func (p *Pipe) process(hdr *Header, pdu []byte) error {
	switch hdr.PacketType {
	case PDUBind:
		bindReq, err := ParseBindRequest(pdu)
		if err != nil {
			return err
		}
		p.readBuffer.Write(p.handler.HandleBind(bindReq))
		p.bound = true

	case PDURequest:
		if !p.bound {
			p.readBuffer.Write(encodeFault(hdr.CallID, FaultProtocolError))
			return nil
		}
		req, err := ParseRequest(pdu)
		if err != nil {
			return err
		}
		for _, frag := range p.handler.HandleRequest(req) {
			p.readBuffer.Write(frag)
		}

	default:
		return fmt.Errorf("unexpected PDU type %d on srvsvc pipe", hdr.PacketType)
	}
	return nil
}

// Read returns buffered response data. It returns io.EOF when nothing is
// pending.
func (p *Pipe) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPipeClosed
	}
	if p.readBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuffer.Read(buf)
}

// Close releases the pipe.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readBuffer.Reset()
	return nil
}
