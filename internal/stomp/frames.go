package stomp

import (
	"strings"
)

const errorExplanation = "The frame above was rejected and the connection will be closed. " +
	"Check the command and its required headers before reconnecting."

// Connected is the reply to a successful CONNECT.
func Connected(version, session, server string) *Frame {
	f := New(CommandConnected, "", HeaderVersion, version)
	if session != "" {
		f.Headers.Set(HeaderSession, session)
	}
	if server != "" {
		f.Headers.Set(HeaderServer, server)
	}
	f.Headers.Set(HeaderHeartBeat, "0,0")
	return f
}

func Receipt(receiptID string) *Frame {
	return New(CommandReceipt, "", HeaderReceiptID, receiptID)
}

// Message builds a MESSAGE without subscription or message-id; those are set per recipient.
func Message(destination, body string) *Frame {
	return New(CommandMessage, body, HeaderDestination, destination)
}

// Error builds the ERROR sent before a connection is closed. When offending is
// not nil the body quotes its command and headers, and a receipt header on it
// is answered with receipt-id. The body never contains a blank line so the
// frame stays parseable.
func Error(message string, offending *Frame) *Frame {
	f := New(CommandError, "", HeaderMessage, message)
	if offending == nil {
		f.Body = errorExplanation
		return f
	}
	if receipt, ok := offending.Headers.Get(HeaderReceipt); ok {
		f.Headers.Set(HeaderReceiptID, receipt)
	}

	var b strings.Builder
	b.WriteString("The message:\n-----\n")
	b.WriteString(string(offending.Command))
	for _, h := range offending.Headers.entries {
		b.WriteString("\n" + h.Key + ":" + h.Value)
	}
	b.WriteString("\n-----\n")
	b.WriteString(errorExplanation)
	f.Body = b.String()
	return f
}
