package rpc

import "fmt"

// Win32 / NET_API_STATUS codes returned by SRVSVC [MS-ERREF Section 2.2]
const (
	NERR_Success             uint32 = 0x00000000
	ERROR_ACCESS_DENIED      uint32 = 0x00000005
	ERROR_NOT_SUPPORTED      uint32 = 0x00000032
	ERROR_BAD_NETPATH        uint32 = 0x00000035
	ERROR_INVALID_PARAMETER  uint32 = 0x00000057
	ERROR_INVALID_NAME       uint32 = 0x0000007B
	ERROR_INVALID_LEVEL      uint32 = 0x0000007C
	ERROR_MORE_DATA          uint32 = 0x000000EA
	RPC_S_SERVER_UNAVAILABLE uint32 = 0x000006BA
	NERR_BufTooSmall         uint32 = 0x0000084B
	NERR_NetNameNotFound     uint32 = 0x00000906
)

var statusNames = map[uint32]string{
	NERR_Success:             "NERR_Success",
	ERROR_ACCESS_DENIED:      "ERROR_ACCESS_DENIED",
	ERROR_NOT_SUPPORTED:      "ERROR_NOT_SUPPORTED",
	ERROR_BAD_NETPATH:        "ERROR_BAD_NETPATH",
	ERROR_INVALID_PARAMETER:  "ERROR_INVALID_PARAMETER",
	ERROR_INVALID_NAME:       "ERROR_INVALID_NAME",
	ERROR_INVALID_LEVEL:      "ERROR_INVALID_LEVEL",
	ERROR_MORE_DATA:          "ERROR_MORE_DATA",
	RPC_S_SERVER_UNAVAILABLE: "RPC_S_SERVER_UNAVAILABLE",
	NERR_BufTooSmall:         "NERR_BufTooSmall",
	NERR_NetNameNotFound:     "NERR_NetNameNotFound",
	FaultOpRangeError:        "nca_op_rng_error",
	FaultProtocolError:       "nca_proto_error",
	FaultUnsupportedIfc:      "nca_unk_if",
}

// StatusText returns the symbolic name of a status code, or its hex value.
func StatusText(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", status)
}

// StatusError is returned when an SRVSVC call completes with a non-success
// return value.
type StatusError struct {
	Op     string
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, StatusText(e.Status))
}
