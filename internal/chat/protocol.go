package chat

import (
	"strings"
)

// Server to client lines.
const (
	ReplyUsernameEmpty    = "Username cannot be empty."
	ReplyUsernameTaken    = "Username already taken."
	ReplyUsernameAccepted = "Username accepted."

	ReplyNoMessage      = "No message attached"
	ReplyClientNotFound = "Client not found"
	ReplyExiting        = "Exiting chat..."
	ReplyTerminate      = "terminate"

	onlinePrefix  = "ONLINE:"
	leavingPrefix = "LEAVING: "
	whisperPrefix = "Whisper from "
)

const exitCommand = "/exit"

// ParseLine classifies a post-handshake line. Exit and whisper detection run
// on the trimmed line; group chat keeps the line untouched.
func ParseLine(line string) Command {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == exitCommand:
		return Command{Type: CommandExit, Raw: line}
	case strings.HasPrefix(trimmed, "@") && strings.Contains(trimmed, " "):
		return Command{Type: CommandWhisper, Raw: trimmed}
	case strings.HasPrefix(trimmed, "@"):
		return Command{Type: CommandMalformedWhisper, Raw: line}
	default:
		return Command{Type: CommandChat, Raw: line}
	}
}

// OnlineLine renders a membership snapshot.
func OnlineLine(names []string) string {
	return onlinePrefix + strings.Join(names, ",")
}

func leavingLine(username string) string { return leavingPrefix + username }

func leftLine(username string) string { return username + " has left the group chat." }

func joinedLine(username string) string { return username + " has joined the chat." }

func chatLine(sender, text string) string { return sender + ": " + text }

func whisperLine(sender, text string) string { return whisperPrefix + sender + ": " + text }

func trimLineEnd(line string) string {
	return strings.TrimRight(line, "\r\n")
}
