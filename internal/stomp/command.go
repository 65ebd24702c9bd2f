package stomp

// Command is a STOMP command and the first line of a frame.
type Command string

const (
	CommandConnect     Command = "CONNECT"
	CommandStomp       Command = "STOMP"
	CommandConnected   Command = "CONNECTED"
	CommandSend        Command = "SEND"
	CommandMessage     Command = "MESSAGE"
	CommandSubscribe   Command = "SUBSCRIBE"
	CommandUnsubscribe Command = "UNSUBSCRIBE"
	CommandDisconnect  Command = "DISCONNECT"
	CommandReceipt     Command = "RECEIPT"
	CommandError       Command = "ERROR"
)

func (c Command) String() string {
	return string(c)
}
