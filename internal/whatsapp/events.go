package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"gowa-gateway/internal/service"
)

// translateEvent memetakan event whatsmeow ke event service. Event yang
// tidak relevan untuk lifecycle session dikembalikan dengan ok=false.
func translateEvent(raw any) (service.Event, bool) {
	switch evt := raw.(type) {
	case *events.Connected:
		return service.Event{Kind: service.EventOpen}, true

	case *events.PairSuccess:
		return service.Event{Kind: service.EventCredentialsUpdate}, true

	case *events.LoggedOut:
		return service.Event{
			Kind:   service.EventClose,
			Reason: service.CloseLoggedOut,
			Err:    fmt.Errorf("logged out: %s", evt.Reason),
		}, true

	case *events.ConnectFailure:
		reason := service.CloseTransient
		if evt.Reason.IsLoggedOut() {
			reason = service.CloseLoggedOut
		}
		return service.Event{
			Kind:   service.EventClose,
			Reason: reason,
			Err:    fmt.Errorf("connect failure: %s %s", evt.Reason, evt.Message),
		}, true

	case *events.TemporaryBan:
		return service.Event{Kind: service.EventClose, Reason: service.CloseTransient, Err: fmt.Errorf("temporary ban: %s", evt)}, true

	case *events.StreamReplaced:
		return service.Event{Kind: service.EventClose, Reason: service.CloseTransient, Err: fmt.Errorf("stream replaced")}, true

	case *events.Disconnected:
		return service.Event{Kind: service.EventClose, Reason: service.CloseTransient}, true

	case *events.Message:
		msg := inboundFrom(evt)
		return service.Event{Kind: service.EventMessage, Message: &msg}, true
	}
	return service.Event{}, false
}

// inboundFrom memakai JID chat sebagai pengirim, jadi balasan webhook
// bisa langsung dikirim balik ke chat yang sama.
func inboundFrom(evt *events.Message) service.InboundMessage {
	m := evt.Message
	return service.InboundMessage{
		SenderID:         evt.Info.Chat.ToNonAD().String(),
		DisplayName:      evt.Info.PushName,
		FromSelf:         evt.Info.IsFromMe,
		Conversation:     m.GetConversation(),
		ExtendedText:     m.GetExtendedTextMessage().GetText(),
		SelectedRowID:    m.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID(),
		SelectedButtonID: selectedButton(m),
	}
}

func selectedButton(m *waE2E.Message) string {
	if id := m.GetButtonsResponseMessage().GetSelectedButtonID(); id != "" {
		return id
	}
	return m.GetTemplateButtonReplyMessage().GetSelectedID()
}
