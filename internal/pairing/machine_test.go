package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-service/internal/domain"
)

func TestMachineStartsDisconnected(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, domain.StatusDisconnected, m.Status())
	assert.True(t, m.Session().Credential.IsNone())
}

func TestChannelOpenedRequestsCredential(t *testing.T) {
	m := NewMachine()

	tr, cmds := m.Apply(domain.ChannelOpened())
	assert.True(t, tr.Changed())
	assert.Equal(t, domain.StatusAwaitingCredential, tr.To)
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.CommandRequestCredential, cmds[0].Type)

	tr, cmds = m.Apply(domain.ChannelOpened())
	assert.True(t, tr.Ignored)
	assert.Empty(t, cmds)
}

func TestPairingCodeFlowEndsConnected(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())

	tr, _ := m.Apply(domain.PairingCodeEvent("123456"))
	assert.Equal(t, domain.StatusPairingCodeIssued, tr.To)
	assert.Equal(t, domain.PairingCodeCredential("123456"), m.Session().Credential)

	tr, _ = m.Apply(domain.StatusUpdate("connected", "WhatsApp is ready"))
	assert.Equal(t, domain.StatusConnected, tr.To)
	s := m.Session()
	assert.True(t, s.Credential.IsNone())
	assert.Equal(t, "WhatsApp is ready", s.LastMessage)

	tr, _ = m.Apply(domain.ChannelClosed())
	assert.Equal(t, domain.StatusDisconnected, tr.To)
	assert.True(t, m.Session().Credential.IsNone())
}

func TestCredentialsReplaceEachOther(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())

	m.Apply(domain.CredentialQREvent([]byte("qr-1")))
	assert.Equal(t, domain.CredentialQR, m.Session().Credential.Kind)
	assert.Equal(t, domain.StatusAwaitingCredential, m.Status())

	m.Apply(domain.PairingCodeEvent("ABCD"))
	cred := m.Session().Credential
	assert.Equal(t, domain.CredentialPairingCode, cred.Kind)
	assert.Nil(t, cred.Payload)

	// A QR while a pairing code is live drops back to awaiting.
	tr, _ := m.Apply(domain.CredentialQREvent([]byte("qr-2")))
	assert.Equal(t, domain.StatusAwaitingCredential, tr.To)
	cred = m.Session().Credential
	assert.Equal(t, "qr-2", string(cred.Payload))
	assert.Empty(t, cred.Code)
}

func TestReRequestedPairingCodeReplacesOld(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())
	m.Apply(domain.PairingCodeEvent("OLD1"))

	tr, _ := m.Apply(domain.PairingCodeEvent("NEW2"))
	assert.False(t, tr.Ignored)
	assert.Equal(t, "NEW2", m.Session().Credential.Code)
}

func TestLateEventsAreIgnored(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())
	m.Apply(domain.CredentialQREvent([]byte("qr")))
	m.Apply(domain.StatusUpdate("connected", ""))
	before := m.Session()

	for _, ev := range []domain.Event{
		domain.CredentialQREvent([]byte("late")),
		domain.PairingCodeEvent("999999"),
		domain.ChannelOpened(),
		{Type: "garbage"},
	} {
		tr, cmds := m.Apply(ev)
		assert.True(t, tr.Ignored, ev.Type)
		assert.Empty(t, cmds)
	}
	assert.Equal(t, before, m.Session())
}

func TestEventsIgnoredWhileDisconnected(t *testing.T) {
	m := NewMachine()

	for _, ev := range []domain.Event{
		domain.CredentialQREvent([]byte("qr")),
		domain.PairingCodeEvent("1234"),
		domain.StatusUpdate("connected", ""),
	} {
		tr, _ := m.Apply(ev)
		assert.True(t, tr.Ignored, ev.Type)
		assert.Equal(t, domain.StatusDisconnected, m.Status())
	}
}

func TestMalformedCredentialsIgnored(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())

	tr, _ := m.Apply(domain.CredentialQREvent(nil))
	assert.True(t, tr.Ignored)
	tr, _ = m.Apply(domain.PairingCodeEvent(""))
	assert.True(t, tr.Ignored)
	assert.True(t, m.Session().Credential.IsNone())
}

func TestOtherStatusOnlyUpdatesText(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())
	m.Apply(domain.CredentialQREvent([]byte("qr")))

	tr, cmds := m.Apply(domain.StatusUpdate("authenticating", "Linking device..."))
	assert.False(t, tr.Changed())
	assert.Empty(t, cmds)
	s := m.Session()
	assert.Equal(t, domain.StatusAwaitingCredential, s.Status)
	assert.Equal(t, "Linking device...", s.LastMessage)
	assert.Equal(t, domain.CredentialQR, s.Credential.Kind)
}

func TestDeviceUnlinkedWhileConnectedRepairs(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())
	m.Apply(domain.StatusUpdate("connected", ""))

	tr, cmds := m.Apply(domain.StatusUpdate("disconnected", "logged out"))
	assert.Equal(t, domain.StatusAwaitingCredential, tr.To)
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.CommandRequestCredential, cmds[0].Type)
	assert.Equal(t, "logged out", m.Session().LastMessage)
}

func TestCanRequestPairingCode(t *testing.T) {
	m := NewMachine()
	assert.False(t, m.CanRequestPairingCode())

	m.Apply(domain.ChannelOpened())
	assert.True(t, m.CanRequestPairingCode())

	m.Apply(domain.PairingCodeEvent("1234"))
	assert.True(t, m.CanRequestPairingCode())

	m.Apply(domain.StatusUpdate("connected", ""))
	assert.False(t, m.CanRequestPairingCode())
}

func TestSessionSnapshotCopiesPayload(t *testing.T) {
	m := NewMachine()
	m.Apply(domain.ChannelOpened())
	m.Apply(domain.CredentialQREvent([]byte("qr")))

	s := m.Session()
	s.Credential.Payload[0] = 'X'
	assert.Equal(t, "qr", string(m.Session().Credential.Payload))
}
