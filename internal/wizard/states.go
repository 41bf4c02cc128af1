package wizard

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/videoshop/internal/store"
)

const (
	minTitleLen       = 3
	minDescriptionLen = 10
	minBroadcastLen   = 5
)

// State is one step of a wizard. Each implementation holds exactly the
// fields accepted so far.
type State interface {
	Kind() Kind
	// Prompt is the question that opens this step.
	Prompt() string
	// Step validates one input. It never mutates the receiver.
	Step(in Input) Transition
}

// Transition is the result of a step: either a next state, or an outcome
// that ends the session. Staying on the same state re-prompts.
type Transition struct {
	Next    State
	Reply   string
	Outcome Outcome
}

// Outcome is the finished product of a wizard.
type Outcome interface{ isOutcome() }

// NewItem completes the add-item wizard.
type NewItem struct{ Fields store.ItemFields }

// BroadcastText completes the broadcast wizard.
type BroadcastText struct{ Text string }

func (NewItem) isOutcome()       {}
func (BroadcastText) isOutcome() {}

func stay(s State, reply string) Transition { return Transition{Next: s, Reply: reply} }

func advance(s State) Transition { return Transition{Next: s, Reply: s.Prompt()} }

func textOf(in Input) (string, bool) {
	if in.Attachment != nil {
		return "", false
	}
	t := strings.TrimSpace(in.Text)
	return t, t != ""
}

func atLeast(s string, n int) bool { return utf8.RuneCountInString(s) >= n }

type awaitingTitle struct{}

func (awaitingTitle) Kind() Kind { return KindAddItem }
func (awaitingTitle) Prompt() string {
	return "Please send the title for the new video:"
}

func (s awaitingTitle) Step(in Input) Transition {
	title, ok := textOf(in)
	if !ok || !atLeast(title, minTitleLen) {
		return stay(s, "The title must be at least 3 characters. Please send the title:")
	}
	return advance(awaitingDescription{title: title})
}

type awaitingDescription struct {
	title string
}

func (awaitingDescription) Kind() Kind { return KindAddItem }
func (awaitingDescription) Prompt() string {
	return "Please send the description for the video:"
}

func (s awaitingDescription) Step(in Input) Transition {
	desc, ok := textOf(in)
	if !ok || !atLeast(desc, minDescriptionLen) {
		return stay(s, "The description must be at least 10 characters. Please send the description:")
	}
	return advance(awaitingPrice{title: s.title, description: desc})
}

type awaitingPrice struct {
	title, description string
}

func (awaitingPrice) Kind() Kind { return KindAddItem }
func (awaitingPrice) Prompt() string {
	return "Please send the price in Stars for the video:"
}

func (s awaitingPrice) Step(in Input) Transition {
	raw, ok := textOf(in)
	price, err := strconv.ParseInt(raw, 10, 64)
	if !ok || err != nil || price <= 0 {
		return stay(s, "Please send a valid number for the price.")
	}
	return advance(awaitingDuration{title: s.title, description: s.description, price: price})
}

type awaitingDuration struct {
	title, description string
	price              int64
}

func (awaitingDuration) Kind() Kind { return KindAddItem }
func (awaitingDuration) Prompt() string {
	return "Please send the duration of the video (e.g., 10:30):"
}

func (s awaitingDuration) Step(in Input) Transition {
	d, ok := textOf(in)
	if !ok {
		return stay(s, s.Prompt())
	}
	return advance(awaitingContent{title: s.title, description: s.description, price: s.price, duration: d})
}

type awaitingContent struct {
	title, description string
	price              int64
	duration           string
}

func (awaitingContent) Kind() Kind { return KindAddItem }
func (awaitingContent) Prompt() string {
	return "Please send the video file:"
}

func (s awaitingContent) Step(in Input) Transition {
	a := in.Attachment
	if a == nil || a.Kind != AttachmentVideo || strings.TrimSpace(a.Ref) == "" {
		return stay(s, "Please send a video file.")
	}
	return Transition{Outcome: NewItem{Fields: store.ItemFields{
		Title:       s.title,
		Description: s.description,
		Price:       s.price,
		Duration:    s.duration,
		ContentRef:  a.Ref,
	}}}
}

type awaitingBroadcast struct{}

func (awaitingBroadcast) Kind() Kind { return KindBroadcast }
func (awaitingBroadcast) Prompt() string {
	return "Please send the message you want to broadcast to all users:"
}

func (s awaitingBroadcast) Step(in Input) Transition {
	text, ok := textOf(in)
	if !ok || !atLeast(text, minBroadcastLen) {
		return stay(s, "The message must be at least 5 characters. Please send the broadcast text:")
	}
	return Transition{Outcome: BroadcastText{Text: text}}
}
