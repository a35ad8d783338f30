package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/whatsapp"
)

// Text a user can send to get a question immediately.
const forceQuestionLiteral = "nueva pregunta"

var (
	answerIDRe = regexp.MustCompile(`^q_(\d+)_opt_(\d+)$`)
	dayIDRe    = regexp.MustCompile(`^day_([0-6])$`)
)

// Classify turns one boundary message into a typed Event. It is pure and
// never fails: shapes it cannot place become EventUnrecognized.
//
// Recognition order: button ids, list reply ids, the force-question
// command, typed weekday names (kept for users who answer the day list by
// text), then hour candidates.
func Classify(msg whatsapp.InboundMessage) domain.Event {
	ev := domain.Event{Kind: domain.EventUnrecognized, Day: -1, Hour: -1, Raw: msg.Raw}

	switch msg.Type {
	case whatsapp.InboundButtonReply:
		if msg.ReplyID == domain.ButtonYes || msg.ReplyID == domain.ButtonNo {
			ev.Kind = domain.EventButtonReply
			ev.Button = msg.ReplyID
		}
		return ev

	case whatsapp.InboundListReply:
		if m := answerIDRe.FindStringSubmatch(msg.ReplyID); m != nil {
			qid, err1 := strconv.ParseInt(m[1], 10, 64)
			opt, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				ev.Kind = domain.EventListReply
				ev.Answer = &domain.Answer{QuestionID: qid, Option: opt}
			}
			return ev
		}
		if m := dayIDRe.FindStringSubmatch(msg.ReplyID); m != nil {
			day, _ := strconv.Atoi(m[1])
			ev.Kind = domain.EventListReply
			ev.Day = day
		}
		return ev

	case whatsapp.InboundText:
		text := strings.TrimSpace(msg.Body)
		if strings.EqualFold(text, forceQuestionLiteral) {
			ev.Kind = domain.EventCommand
			ev.Command = domain.CommandForceNewQuestion
			return ev
		}
		if day, err := domain.ParseDayName(text); err == nil {
			// Day chosen by typing its name instead of tapping the list.
			ev.Kind = domain.EventListReply
			ev.Day = day
			return ev
		}
		ev.Kind = domain.EventFreeText
		ev.Text = text
		if hour, err := domain.ParseHour(text); err == nil {
			ev.Hour = hour
		}
		return ev

	default:
		return ev
	}
}
