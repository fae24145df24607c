package flow

import (
	"context"
	"maps"
)

// FlowID names a dialogue.
type FlowID string

// StateID names a state within a flow.
type StateID string

// BackToken is the universal input that returns to a state's back target.
const BackToken = "Back"

// InputClass is the classification of one inbound text against the current
// state's declared input.
type InputClass int

const (
	// InputChoice is an enumerated option the state offers.
	InputChoice InputClass = iota
	// InputInvalid is text in an enumerated state that matches no option.
	InputInvalid
	// InputText is free text that passes the state's format check.
	InputText
	// InputMalformed is free text that fails the state's format check.
	InputMalformed
	// InputBack is the Back token in a state that declares a back target.
	InputBack
)

var inputClassNames = map[InputClass]string{
	InputChoice:    "choice",
	InputInvalid:   "invalid",
	InputText:      "text",
	InputMalformed: "malformed",
	InputBack:      "back",
}

func (c InputClass) String() string {
	if name, ok := inputClassNames[c]; ok {
		return name
	}
	return "unknown"
}

// InputClasses lists every classification.
func InputClasses() []InputClass {
	return []InputClass{InputChoice, InputInvalid, InputText, InputMalformed, InputBack}
}

// Event is one inbound message.
type Event struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Action is one outbound message with the options the client should offer.
type Action struct {
	UserID  string   `json:"user_id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// Session is the per-user conversational context.
type Session struct {
	UserID  string
	Flow    FlowID
	State   StateID
	Scratch map[string]string
}

// Clone returns a copy that shares no scratch storage with s.
func (s Session) Clone() Session {
	out := s
	out.Scratch = maps.Clone(s.Scratch)
	if out.Scratch == nil {
		out.Scratch = map[string]string{}
	}
	return out
}

// InputSpec declares what a state accepts. A non-nil Choices makes the state
// enumerated; otherwise it accepts free text that passes Check.
type InputSpec struct {
	Choices []string
	// Check validates free text. Nil accepts any non-empty text.
	Check func(text string) error
	// Hint is shown when free text fails Check.
	Hint string
}

// BackRule declares where Back leads and whether scratch survives.
type BackRule struct {
	Target      StateID
	KeepScratch bool
}

// State declares one state of a flow.
type State struct {
	ID StateID
	// Enter renders the prompt shown when the state is entered.
	Enter func(ctx context.Context, s Session) (string, error)
	// Input derives the accepted input from the session.
	Input func(s Session) InputSpec
	Back  *BackRule
}

// Flow declares one dialogue.
type Flow struct {
	ID      FlowID
	Initial StateID
	States  []State
	// ScratchKeys lists every scratch key the flow may hold. Others are
	// pruned after each transition.
	ScratchKeys []string
	// PersistentKeys survive scratch resets within the flow.
	PersistentKeys []string
}

// Turn is the handler's view of one dispatch. Handlers may mutate
// Session.Scratch; changes are kept only if the dispatch succeeds.
type Turn struct {
	Session *Session
	Event   Event
	// Input is the canonical choice, the trimmed free text, or the arguments
	// of a command.
	Input string
	Class InputClass
}

// Outcome tells the engine where a handled turn leads.
type Outcome struct {
	// Reply is sent before the next prompt, or with the current options when
	// the state does not change.
	Reply string
	// Next is the state to enter. Empty stays in the current state.
	Next StateID
	// Flow switches dialogue; Next defaults to the flow's initial state.
	Flow FlowID
	// ClearScratch drops every non-persistent scratch key.
	ClearScratch bool
	// Exit resets the session to the home state.
	Exit bool
}

// Handler processes one classified input.
type Handler func(ctx context.Context, t *Turn) (Outcome, error)

// Transition binds a handler to a (flow, state, class) triple.
type Transition struct {
	Flow    FlowID
	State   StateID
	Class   InputClass
	Handler Handler
}

// Command is a slash command honoured before table lookup.
type Command struct {
	Name string
	// Flows restricts the command to these flows. Empty means every flow.
	Flows   []FlowID
	Handler Handler
}

// Definition is the complete data-driven description of every dialogue.
type Definition struct {
	Flows       []Flow
	Transitions []Transition
	Commands    []Command
	// Home is where new sessions start and exits land.
	HomeFlow  FlowID
	HomeState StateID
	// FirstContact handles the first message from a user without a session
	// unless that message is itself a command.
	FirstContact Handler
}

type transitionKey struct {
	flow  FlowID
	state StateID
	class InputClass
}
