package chat

// CommandType classifies one inbound line of an active session.
type CommandType int

const (
	CommandChat CommandType = iota
	CommandWhisper
	CommandMalformedWhisper
	CommandExit
)

func (t CommandType) String() string {
	switch t {
	case CommandWhisper:
		return "whisper"
	case CommandMalformedWhisper:
		return "malformed"
	case CommandExit:
		return "exit"
	default:
		return "broadcast"
	}
}

// Command is a parsed inbound line. Raw keeps the line as it was read
// (minus the line terminator); whispers carry the trimmed line.
type Command struct {
	Type CommandType
	Raw  string
}

var (
	ErrUsernameEmpty = errorString("username_empty")
	ErrUsernameTaken = errorString("username_taken")
	ErrSessionClosed = errorString("session_closed")
	ErrServerClosed  = errorString("server_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }
