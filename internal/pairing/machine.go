// Package pairing tracks the link between the messaging agent and a mobile
// device. Machine is the pure transition table; Session drives it from a
// live channel.
package pairing

import (
	"time"

	"whatsapp-service/internal/domain"
)

const (
	msgInitializing      = "Initializing WhatsApp connection..."
	msgWaitingForQR      = "Waiting for QR code..."
	msgScanQR            = "Scan this QR code with WhatsApp"
	msgEnterCode         = "Enter this code on your phone"
	msgConnected         = "WhatsApp connected"
	msgDeviceUnlinked    = "Device disconnected, waiting for a new credential"
	msgDisconnected      = "Disconnected from server"
	msgRequestingPairing = "Requesting pairing code..."
	msgPairingTimedOut   = "Pairing code request timed out, try again"
)

// Transition describes the effect of one event.
type Transition struct {
	From    domain.ConnectionStatus
	To      domain.ConnectionStatus
	Ignored bool
}

func (t Transition) Changed() bool {
	return !t.Ignored && t.From != t.To
}

// Machine is not safe for concurrent use; Session serializes access.
type Machine struct {
	session domain.ConnectionSession
	now     func() time.Time
}

func NewMachine() *Machine {
	m := &Machine{now: time.Now}
	m.reset(msgInitializing)
	return m
}

func (m *Machine) Session() domain.ConnectionSession {
	s := m.session
	if s.Credential.Payload != nil {
		s.Credential.Payload = append([]byte(nil), s.Credential.Payload...)
	}
	return s
}

func (m *Machine) Status() domain.ConnectionStatus {
	return m.session.Status
}

// Apply consumes one inbound event and returns the transition plus any
// commands to send back on the channel. Events that are not valid for the
// current state are ignored.
func (m *Machine) Apply(ev domain.Event) (Transition, []domain.Command) {
	from := m.session.Status
	t := Transition{From: from, To: from}

	var cmds []domain.Command
	switch ev.Type {
	case domain.EventChannelOpened:
		if from != domain.StatusDisconnected {
			t.Ignored = true
			break
		}
		m.set(domain.StatusAwaitingCredential, domain.Credential{}, msgWaitingForQR)
		cmds = append(cmds, domain.Command{Type: domain.CommandRequestCredential})

	case domain.EventCredentialQR:
		if !awaiting(from) || len(ev.QR) == 0 {
			t.Ignored = true
			break
		}
		m.set(domain.StatusAwaitingCredential, domain.QRCredential(ev.QR), msgScanQR)

	case domain.EventCredentialPairingCode:
		// A re-requested code replaces the one already issued.
		if !awaiting(from) || ev.Code == "" {
			t.Ignored = true
			break
		}
		m.set(domain.StatusPairingCodeIssued, domain.PairingCodeCredential(ev.Code), msgEnterCode)

	case domain.EventStatusUpdate:
		cmds = m.applyStatus(ev, &t)

	case domain.EventChannelClosed:
		m.reset(msgDisconnected)

	default:
		t.Ignored = true
	}

	t.To = m.session.Status
	return t, cmds
}

func (m *Machine) applyStatus(ev domain.Event, t *Transition) []domain.Command {
	from := m.session.Status
	text := ev.Message

	switch domain.ConnectionStatus(ev.Status) {
	case domain.StatusConnected:
		switch {
		case awaiting(from):
			if text == "" {
				text = msgConnected
			}
			m.set(domain.StatusConnected, domain.Credential{}, text)
		case from == domain.StatusConnected:
			m.setMessage(text)
		default:
			t.Ignored = true
		}
		return nil

	case domain.StatusDisconnected:
		// The agent lost the linked device while the channel stays open:
		// fall back to awaiting a fresh credential.
		if from == domain.StatusConnected {
			if text == "" {
				text = msgDeviceUnlinked
			}
			m.set(domain.StatusAwaitingCredential, domain.Credential{}, text)
			return []domain.Command{{Type: domain.CommandRequestCredential}}
		}
	}

	if text == "" {
		t.Ignored = true
		return nil
	}
	m.setMessage(text)
	return nil
}

// CanRequestPairingCode reports whether a pairing-code command is valid now.
func (m *Machine) CanRequestPairingCode() bool {
	return awaiting(m.session.Status)
}

// Note updates the display text without touching state.
func (m *Machine) Note(text string) {
	m.setMessage(text)
}

// Reset forces the machine back to Disconnected.
func (m *Machine) Reset(text string) {
	m.reset(text)
}

func (m *Machine) reset(text string) {
	m.set(domain.StatusDisconnected, domain.Credential{}, text)
}

func (m *Machine) set(status domain.ConnectionStatus, cred domain.Credential, text string) {
	m.session.Status = status
	m.session.Credential = cred
	m.session.LastMessage = text
	m.session.UpdatedAt = m.now()
}

func (m *Machine) setMessage(text string) {
	m.session.LastMessage = text
	m.session.UpdatedAt = m.now()
}

func awaiting(s domain.ConnectionStatus) bool {
	return s == domain.StatusAwaitingCredential || s == domain.StatusPairingCodeIssued
}
