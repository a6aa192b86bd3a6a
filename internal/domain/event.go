package domain

// EventType names an inbound event from the connection channel.
type EventType string

const (
	EventChannelOpened         EventType = "channel-opened"
	EventCredentialQR          EventType = "credential-qr"
	EventCredentialPairingCode EventType = "credential-pairing-code"
	EventStatusUpdate          EventType = "status-update"
	EventChannelClosed         EventType = "channel-closed"
)

// Event is one inbound channel event. Only the fields matching Type are set.
type Event struct {
	Type    EventType
	QR      []byte
	Code    string
	Status  string
	Message string
}

func ChannelOpened() Event {
	return Event{Type: EventChannelOpened}
}

func CredentialQREvent(payload []byte) Event {
	return Event{Type: EventCredentialQR, QR: payload}
}

func PairingCodeEvent(code string) Event {
	return Event{Type: EventCredentialPairingCode, Code: code}
}

func StatusUpdate(status, message string) Event {
	return Event{Type: EventStatusUpdate, Status: status, Message: message}
}

func ChannelClosed() Event {
	return Event{Type: EventChannelClosed}
}

// CommandType names an outbound command to the connection channel.
type CommandType string

const (
	CommandRequestCredential  CommandType = "request-credential"
	CommandRequestPairingCode CommandType = "request-pairing-code"
)

type Command struct {
	Type  CommandType
	Phone string // only for CommandRequestPairingCode
}
