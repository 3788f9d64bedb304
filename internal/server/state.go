package server

// State is the stage a connection has reached.
type State int

const (
	StateListening State = iota
	StateAccepted
	StateHeadersRead
	StateBodyRead
	StateFormDecoded
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateAccepted:
		return "accepted"
	case StateHeadersRead:
		return "headers_read"
	case StateBodyRead:
		return "body_read"
	case StateFormDecoded:
		return "form_decoded"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
