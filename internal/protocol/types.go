package protocol

// Verb is the command token before the first ':'.
type Verb string

const (
	VerbInit Verb = "INIT"
	VerbDir  Verb = "DIR"
	VerbTR   Verb = "TR"
	VerbFin  Verb = "FIN"
)

// Command is one parsed request line.
type Command struct {
	Verb Verb
	Arg  string
}

// Response is one reply line without its CRLF terminator.
type Response string

const (
	RespOK             Response = "OK"
	RespNotAuthorized  Response = "ERR:NOT_AUTHORIZED"
	RespNotRecognized  Response = "ERR:NOT_RECOGNIZED"
	RespNullStrDecoded Response = "ERR:NULL_STR_DECODED"
	RespTransFailed    Response = "ERR:TRANS_FAILED"

	resultPrefix = "RES:"
)

// State is the protocol state of one connection.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}
