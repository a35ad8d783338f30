package domain

// IntentKind tags the variants of an outbound SendIntent.
type IntentKind int

const (
	IntentText IntentKind = iota
	IntentTemplate
	IntentList
	IntentButtons
)

// ListItem is one selectable row of an interactive list message.
type ListItem struct {
	ID          string
	Title       string
	Description string
}

// ButtonOption is one reply button of an interactive button message.
type ButtonOption struct {
	ID    string
	Title string
}

// SendIntent is an engine-produced, not-yet-executed instruction to deliver
// one outbound message. The transport consumes it exactly once.
type SendIntent struct {
	Kind IntentKind
	To   string // phone number

	// IntentText
	Body string

	// IntentTemplate
	Template string
	Params   []string

	// IntentList
	Header     string
	Footer     string
	ButtonText string
	Items      []ListItem

	// IntentButtons
	Buttons []ButtonOption
}

// Text builds a plain text intent.
func Text(to, body string) SendIntent {
	return SendIntent{Kind: IntentText, To: to, Body: body}
}

// Template builds a template intent.
func Template(to, name string, params ...string) SendIntent {
	return SendIntent{Kind: IntentTemplate, To: to, Template: name, Params: params}
}
