package domain

import "time"

// ConnectionStatus is the pairing lifecycle state of the messaging agent.
type ConnectionStatus string

const (
	StatusDisconnected       ConnectionStatus = "disconnected"
	StatusAwaitingCredential ConnectionStatus = "awaiting_credential"
	StatusPairingCodeIssued  ConnectionStatus = "pairing_code_issued"
	StatusConnected          ConnectionStatus = "connected"
)

type CredentialKind string

const (
	CredentialNone        CredentialKind = ""
	CredentialQR          CredentialKind = "qr"
	CredentialPairingCode CredentialKind = "pairing_code"
)

// Credential is the single live pairing credential. The zero value means none.
type Credential struct {
	Kind    CredentialKind
	Payload []byte // QR image data, set only when Kind == CredentialQR
	Code    string // set only when Kind == CredentialPairingCode
}

func QRCredential(payload []byte) Credential {
	return Credential{Kind: CredentialQR, Payload: payload}
}

func PairingCodeCredential(code string) Credential {
	return Credential{Kind: CredentialPairingCode, Code: code}
}

func (c Credential) IsNone() bool {
	return c.Kind == CredentialNone
}

// ConnectionSession is a point-in-time view of the pairing state.
type ConnectionSession struct {
	Status      ConnectionStatus
	Credential  Credential
	LastMessage string
	UpdatedAt   time.Time
}

// SessionView is the JSON shape served to UI consumers.
type SessionView struct {
	Status      ConnectionStatus `json:"status"`
	Message     string           `json:"message"`
	QRCode      string           `json:"qr_code,omitempty"`
	PairingCode string           `json:"pairing_code,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (s ConnectionSession) View() SessionView {
	v := SessionView{
		Status:    s.Status,
		Message:   s.LastMessage,
		UpdatedAt: s.UpdatedAt,
	}
	switch s.Credential.Kind {
	case CredentialQR:
		v.QRCode = string(s.Credential.Payload)
	case CredentialPairingCode:
		v.PairingCode = s.Credential.Code
	}
	return v
}
