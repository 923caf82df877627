// internal/protocol/uvc.go
package protocol

import "fmt"

// VideoMode is the four mode-table bytes sent with a video switch.
type VideoMode [4]byte

// Request is a UVC class request code.
type Request byte

const (
	RequestSetCur  Request = 0x01
	RequestGetCur  Request = 0x81
	RequestGetMin  Request = 0x82
	RequestGetMax  Request = 0x83
	RequestGetRes  Request = 0x84
	RequestGetLen  Request = 0x85
	RequestGetInfo Request = 0x86
	RequestGetDef  Request = 0x87
)

func (r Request) String() string {
	switch r {
	case RequestSetCur:
		return "set_cur"
	case RequestGetCur:
		return "get_cur"
	case RequestGetMin:
		return "get_min"
	case RequestGetMax:
		return "get_max"
	case RequestGetRes:
		return "get_res"
	case RequestGetLen:
		return "get_len"
	case RequestGetInfo:
		return "get_info"
	case RequestGetDef:
		return "get_def"
	default:
		return fmt.Sprintf("request(0x%02X)", byte(r))
	}
}

// ParseRequest maps names such as "get_cur" to their code.
func ParseRequest(s string) (Request, error) {
	for r := RequestGetCur; r <= RequestGetDef; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	if s == RequestSetCur.String() {
		return RequestSetCur, nil
	}
	return 0, fmt.Errorf("unknown request %q", s)
}

// IsGet reports whether r is one of the GET_* requests.
func (r Request) IsGet() bool {
	return r >= RequestGetCur && r <= RequestGetDef
}
