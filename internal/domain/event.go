package domain

// EventKind tags the variants of an inbound Event.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventCommand
	EventButtonReply
	EventListReply
	EventFreeText
)

// Command literals the router recognizes.
const (
	CommandForceNewQuestion = "force_new_question"
)

// Button ids fixed by the platform-side message definitions.
const (
	ButtonYes = "yes_button"
	ButtonNo  = "no_button"
)

// Answer is a parsed q_<questionID>_opt_<n> list reply.
type Answer struct {
	QuestionID int64
	Option     int // 1-based option position as sent
}

// Event is the typed form of one inbound payload, produced by the router
// and consumed exactly once by the engine. Exactly one variant is set,
// indicated by Kind:
//
//	EventCommand    -> Command
//	EventButtonReply-> Button
//	EventListReply  -> Answer, or Day >= 0 for a day_<n> selection
//	EventFreeText   -> Text, with Hour >= 0 when it parses as an hour
//	EventUnrecognized -> Raw only
type Event struct {
	Kind    EventKind
	Command string
	Button  string
	Answer  *Answer
	Day     int // 0..6 for day list replies, else -1
	Hour    int // 0..23 for hour-candidate free text, else -1
	Text    string
	Raw     string
}
