package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/example/cohort-bot/internal/application"
	"github.com/example/cohort-bot/internal/logging"
)

// Messages the engine sends on its own behalf.
const (
	MsgGenericFailure = "Something went wrong. Please try again."
	MsgChooseOption   = "Please choose one of the offered options."
	MsgEnterValue     = "Please enter a value."
)

// ErrEmptyUser is returned when an event carries no user identifier.
var ErrEmptyUser = errors.New("flow: event has no user id")

type compiledFlow struct {
	flow       Flow
	states     map[StateID]*State
	keys       map[string]bool
	persistent map[string]bool
}

// Engine dispatches inbound events through the declared flows.
type Engine struct {
	flows        map[FlowID]*compiledFlow
	handlers     map[transitionKey]Handler
	commands     map[string]Command
	home         Session
	firstContact Handler
	store        SessionStore
	locks        *keyedMutex
	logger       *slog.Logger
}

// NewEngine validates def and returns an engine backed by store. Every
// declared state must have an Enter, an Input and an accept handler
// (InputChoice or InputText), and every back target must exist.
func NewEngine(def Definition, store SessionStore, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("flow: session store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		flows:        make(map[FlowID]*compiledFlow, len(def.Flows)),
		handlers:     make(map[transitionKey]Handler, len(def.Transitions)),
		commands:     make(map[string]Command, len(def.Commands)),
		firstContact: def.FirstContact,
		store:        store,
		locks:        newKeyedMutex(),
		logger:       logger.With("component", "flow"),
	}

	var problems []error
	for _, f := range def.Flows {
		if _, dup := e.flows[f.ID]; dup {
			problems = append(problems, fmt.Errorf("flow %q declared twice", f.ID))
			continue
		}
		cf := &compiledFlow{
			flow:       f,
			states:     make(map[StateID]*State, len(f.States)),
			keys:       make(map[string]bool),
			persistent: make(map[string]bool),
		}
		for i := range f.States {
			st := &f.States[i]
			if _, dup := cf.states[st.ID]; dup {
				problems = append(problems, fmt.Errorf("state %s/%s declared twice", f.ID, st.ID))
			}
			cf.states[st.ID] = st
		}
		for _, k := range f.ScratchKeys {
			cf.keys[k] = true
		}
		for _, k := range f.PersistentKeys {
			cf.keys[k] = true
			cf.persistent[k] = true
		}
		e.flows[f.ID] = cf
	}

	for _, tr := range def.Transitions {
		cf, ok := e.flows[tr.Flow]
		if !ok {
			problems = append(problems, fmt.Errorf("transition for unknown flow %q", tr.Flow))
			continue
		}
		if _, ok := cf.states[tr.State]; !ok {
			problems = append(problems, fmt.Errorf("transition for unknown state %s/%s", tr.Flow, tr.State))
			continue
		}
		if tr.Handler == nil {
			problems = append(problems, fmt.Errorf("transition %s/%s/%s has no handler", tr.Flow, tr.State, tr.Class))
			continue
		}
		e.handlers[transitionKey{tr.Flow, tr.State, tr.Class}] = tr.Handler
	}

	for _, cf := range e.flows {
		if _, ok := cf.states[cf.flow.Initial]; !ok {
			problems = append(problems, fmt.Errorf("flow %q has unknown initial state %q", cf.flow.ID, cf.flow.Initial))
		}
		for _, st := range cf.flow.States {
			if st.Enter == nil || st.Input == nil {
				problems = append(problems, fmt.Errorf("state %s/%s lacks Enter or Input", cf.flow.ID, st.ID))
			}
			_, choice := e.handlers[transitionKey{cf.flow.ID, st.ID, InputChoice}]
			_, text := e.handlers[transitionKey{cf.flow.ID, st.ID, InputText}]
			if !choice && !text {
				problems = append(problems, fmt.Errorf("state %s/%s has no accept handler", cf.flow.ID, st.ID))
			}
			if st.Back != nil {
				if _, ok := cf.states[st.Back.Target]; !ok {
					problems = append(problems, fmt.Errorf("state %s/%s has unknown back target %q", cf.flow.ID, st.ID, st.Back.Target))
				}
			}
		}
	}

	for _, cmd := range def.Commands {
		if !strings.HasPrefix(cmd.Name, "/") || cmd.Handler == nil {
			problems = append(problems, fmt.Errorf("invalid command %q", cmd.Name))
			continue
		}
		for _, id := range cmd.Flows {
			if _, ok := e.flows[id]; !ok {
				problems = append(problems, fmt.Errorf("command %q scoped to unknown flow %q", cmd.Name, id))
			}
		}
		e.commands[cmd.Name] = cmd
	}

	if home, ok := e.flows[def.HomeFlow]; !ok || home.states[def.HomeState] == nil {
		problems = append(problems, fmt.Errorf("unknown home %s/%s", def.HomeFlow, def.HomeState))
	}
	e.home = Session{Flow: def.HomeFlow, State: def.HomeState}

	if err := errors.Join(problems...); err != nil {
		return nil, fmt.Errorf("flow: invalid definition: %w", err)
	}
	return e, nil
}

// Dispatch handles one inbound event to completion and returns the outbound
// actions. Events for the same user are processed one at a time.
//
// When a repository or store fails, the session is left as it was, the user
// receives MsgGenericFailure with the current options, and the error is
// returned alongside those actions.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (actions []Action, err error) {
	userID := strings.TrimSpace(ev.UserID)
	if userID == "" {
		return nil, ErrEmptyUser
	}
	ev.UserID = userID

	unlock := e.locks.Lock(userID)
	defer unlock()

	logger := e.logger.With("dispatch_id", uuid.NewString(), "user_id", userID)
	ctx = logging.ContextWithLogger(ctx, logger)

	stored, found, err := e.store.Get(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "session load failed", "error", err, "error_kind", application.ErrorKind(err))
		return []Action{{UserID: userID, Text: MsgGenericFailure}}, err
	}
	if !found || e.state(stored) == nil {
		stored = e.homeSession(userID)
	}
	stored.UserID = userID

	session := stored.Clone()
	turn := &Turn{Session: &session, Event: ev}
	text := strings.TrimSpace(ev.Text)

	var (
		handler Handler
		label   string
	)
	if cmd, args, ok := e.command(stored.Flow, text); ok {
		handler, label, turn.Input = cmd.Handler, "command", args
	} else if !found && e.firstContact != nil {
		handler, label, turn.Input = e.firstContact, "first_contact", text
	} else {
		turn.Class, turn.Input = e.classify(stored, text)
		handler, label = e.handler(stored, turn.Class), turn.Class.String()
	}

	logger = logger.With("flow", string(stored.Flow), "state", string(stored.State), "input_class", label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "dispatch failed", "error", err, "error_kind", application.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "dispatch completed", "next_flow", string(session.Flow), "next_state", string(session.State))
	}()

	outcome, err := handler(ctx, turn)
	if err != nil {
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			session = stored.Clone()
			msg := vErr.Summary()
			if msg == "" {
				msg = MsgChooseOption
			}
			return []Action{e.withOptions(stored, msg)}, nil
		}
		session = stored
		return []Action{e.withOptions(stored, MsgGenericFailure)}, err
	}

	actions, err = e.apply(ctx, &session, outcome)
	if err != nil {
		session = stored
		return []Action{e.withOptions(stored, MsgGenericFailure)}, err
	}

	if err = e.store.Put(ctx, session); err != nil {
		session = stored
		return []Action{e.withOptions(stored, MsgGenericFailure)}, err
	}
	return actions, nil
}

// Reset discards the user's session; the next event starts from scratch.
func (e *Engine) Reset(ctx context.Context, userID string) error {
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.store.Clear(ctx, userID)
}

// Home returns the state a fresh session starts in.
func (e *Engine) Home() (FlowID, StateID) {
	return e.home.Flow, e.home.State
}

func (e *Engine) homeSession(userID string) Session {
	return Session{UserID: userID, Flow: e.home.Flow, State: e.home.State, Scratch: map[string]string{}}
}

func (e *Engine) state(s Session) *State {
	cf, ok := e.flows[s.Flow]
	if !ok {
		return nil
	}
	return cf.states[s.State]
}

func (e *Engine) command(flow FlowID, text string) (Command, string, bool) {
	if !strings.HasPrefix(text, "/") {
		return Command{}, "", false
	}
	name, args, _ := strings.Cut(text, " ")
	cmd, ok := e.commands[name]
	if !ok {
		return Command{}, "", false
	}
	if len(cmd.Flows) > 0 && !slices.Contains(cmd.Flows, flow) {
		return Command{}, "", false
	}
	return cmd, strings.TrimSpace(args), true
}

// classify maps text onto the current state's declared input.
func (e *Engine) classify(s Session, text string) (InputClass, string) {
	st := e.state(s)
	if st.Back != nil && strings.EqualFold(text, BackToken) {
		return InputBack, BackToken
	}
	spec := st.Input(s)
	if spec.Choices != nil {
		for _, choice := range spec.Choices {
			if strings.EqualFold(text, choice) {
				return InputChoice, choice
			}
		}
		return InputInvalid, text
	}
	if text == "" {
		return InputMalformed, text
	}
	if spec.Check != nil {
		if err := spec.Check(text); err != nil {
			return InputMalformed, text
		}
	}
	return InputText, text
}

func (e *Engine) handler(s Session, class InputClass) Handler {
	if h, ok := e.handlers[transitionKey{s.Flow, s.State, class}]; ok {
		return h
	}
	st := e.state(s)
	switch class {
	case InputBack:
		rule := *st.Back
		return func(context.Context, *Turn) (Outcome, error) {
			return Outcome{Next: rule.Target, ClearScratch: !rule.KeepScratch}, nil
		}
	case InputMalformed:
		hint := st.Input(s).Hint
		if hint == "" {
			hint = MsgEnterValue
		}
		return replyOnly(hint)
	default:
		return replyOnly(MsgChooseOption)
	}
}

func replyOnly(text string) Handler {
	return func(context.Context, *Turn) (Outcome, error) {
		return Outcome{Reply: text}, nil
	}
}

// apply moves s according to outcome and renders the resulting actions.
func (e *Engine) apply(ctx context.Context, s *Session, outcome Outcome) ([]Action, error) {
	entered := false
	switch {
	case outcome.Exit:
		*s = e.homeSession(s.UserID)
		entered = true
	default:
		if outcome.Flow != "" && outcome.Flow != s.Flow {
			cf, ok := e.flows[outcome.Flow]
			if !ok {
				return nil, fmt.Errorf("flow: transition to unknown flow %q", outcome.Flow)
			}
			s.Flow = outcome.Flow
			s.State = cf.flow.Initial
			entered = true
		}
		if outcome.Next != "" {
			s.State = outcome.Next
			entered = true
		}
		if e.state(*s) == nil {
			return nil, fmt.Errorf("flow: transition to unknown state %s/%s", s.Flow, s.State)
		}
		if outcome.ClearScratch {
			e.resetScratch(s)
		}
	}
	e.pruneScratch(s)

	var actions []Action
	if !entered {
		text := outcome.Reply
		if text == "" {
			text = MsgChooseOption
		}
		return append(actions, e.withOptions(*s, text)), nil
	}
	if outcome.Reply != "" {
		actions = append(actions, Action{UserID: s.UserID, Text: outcome.Reply})
	}
	prompt, err := e.state(*s).Enter(ctx, *s)
	if err != nil {
		return nil, err
	}
	return append(actions, e.withOptions(*s, prompt)), nil
}

func (e *Engine) withOptions(s Session, text string) Action {
	return Action{UserID: s.UserID, Text: text, Options: e.options(s)}
}

// options lists the choices offered in s, Back last.
func (e *Engine) options(s Session) []string {
	st := e.state(s)
	if st == nil {
		return nil
	}
	var options []string
	options = append(options, st.Input(s).Choices...)
	if st.Back != nil {
		options = append(options, BackToken)
	}
	return options
}

func (e *Engine) resetScratch(s *Session) {
	cf := e.flows[s.Flow]
	for k := range s.Scratch {
		if !cf.persistent[k] {
			delete(s.Scratch, k)
		}
	}
}

func (e *Engine) pruneScratch(s *Session) {
	cf := e.flows[s.Flow]
	for k := range s.Scratch {
		if !cf.keys[k] {
			delete(s.Scratch, k)
		}
	}
}
