package whatsapp

import "encoding/json"

// Webhook payload shapes for the WhatsApp Cloud API. Only the fields the
// bot reads are modeled; everything else is ignored.

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text"`
	Interactive *Interactive `json:"interactive"`
}

type TextBody struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply"`
	ListReply   *Reply `json:"list_reply"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Inbound message kinds after extraction.
const (
	InboundText        = "text"
	InboundButtonReply = "button_reply"
	InboundListReply   = "list_reply"
)

// InboundMessage is the boundary form of one user message: who sent it,
// what shape it is, and the single interesting string (body or reply id).
type InboundMessage struct {
	MessageID  string
	From       string
	Type       string
	Body       string // text body for InboundText
	ReplyID    string // platform id for button/list replies
	ReplyTitle string
	Raw        string
}

// ExtractMessages pulls user messages out of a webhook payload. Status
// updates and non-WhatsApp objects yield an empty slice, never an error:
// the webhook must always be acknowledged.
func ExtractMessages(body []byte) []InboundMessage {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if payload.Object != "whatsapp_business_account" {
		return nil
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				m := InboundMessage{
					MessageID: msg.ID,
					From:      msg.From,
					Type:      msg.Type,
					Raw:       msg.Type,
				}
				switch {
				case msg.Type == "text" && msg.Text != nil:
					m.Type = InboundText
					m.Body = msg.Text.Body
					m.Raw = msg.Text.Body
				case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
					m.Type = InboundButtonReply
					m.ReplyID = msg.Interactive.ButtonReply.ID
					m.ReplyTitle = msg.Interactive.ButtonReply.Title
					m.Raw = m.ReplyID
				case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.ListReply != nil:
					m.Type = InboundListReply
					m.ReplyID = msg.Interactive.ListReply.ID
					m.ReplyTitle = msg.Interactive.ListReply.Title
					m.Raw = m.ReplyID
				}
				if m.From != "" {
					out = append(out, m)
				}
			}
		}
	}
	return out
}
