package protocol

// Fixed server replies.
const (
	ReplyOK   = "OK"
	ReplyPong = "PONG"
)

// ERR reasons surfaced to clients. The two sentence-style reasons are part
// of the wire format; do not reword them.
const (
	ReasonLoginFirst       = "Please login first"
	ReasonUsernameRequired = "username-required"
	ReasonInvalidUsername  = "invalid-username"
	ReasonUsernameTaken    = "username-taken"
	ReasonEmptyMessage     = "empty-message"
	ReasonDMUsage          = "dm-usage"
	ReasonUserNotFound     = "user-not-found"
	ReasonUnknownCommand   = "Unknown command"
)

// ErrLine formats a command rejection.
func ErrLine(reason string) string {
	return "ERR " + reason
}

// MsgLine formats a broadcast delivery.
func MsgLine(sender, text string) string {
	return "MSG " + sender + " " + text
}

// InfoLine formats a system notice.
func InfoLine(text string) string {
	return "INFO " + text
}

// UserLine formats one entry of a WHO listing.
func UserLine(name string) string {
	return "USER " + name
}

// DMLine formats a direct message delivery.
func DMLine(sender, text string) string {
	return "DM " + sender + " " + text
}

// DMSentLine formats a direct message send confirmation.
func DMSentLine(target, text string) string {
	return "DM-SENT " + target + " " + text
}

// HistLine formats one entry of a HISTORY listing.
func HistLine(sender, text string) string {
	return "HIST " + sender + " " + text
}
