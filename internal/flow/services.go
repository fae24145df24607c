package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/cohort-bot/internal/application"
)

// Flow identifiers.
const (
	FlowRegistration FlowID = "registration"
	FlowAdmin        FlowID = "admin"
)

// Slash commands.
const (
	CommandStart = "/start"
	CommandAdmin = "/admin"
)

// Services are the application collaborators the dialogues call into.
type Services struct {
	Lectures     *application.LectureService
	Participants *application.ParticipantService
	Pairing      *application.PairingEngine
	Alerts       *application.ReminderService
	Gate         *application.AdminGate
}

func (s Services) validate() error {
	var missing []error
	if s.Lectures == nil {
		missing = append(missing, errors.New("lecture service"))
	}
	if s.Participants == nil {
		missing = append(missing, errors.New("participant service"))
	}
	if s.Pairing == nil {
		missing = append(missing, errors.New("pairing engine"))
	}
	if s.Alerts == nil {
		missing = append(missing, errors.New("alert service"))
	}
	if s.Gate == nil {
		missing = append(missing, errors.New("admin gate"))
	}
	if err := errors.Join(missing...); err != nil {
		return fmt.Errorf("flow: missing services: %w", err)
	}
	return nil
}

// NewDefinition assembles the registration and admin dialogues.
func NewDefinition(svc Services) (Definition, error) {
	if err := svc.validate(); err != nil {
		return Definition{}, err
	}
	reg := registrationDialogue{svc: svc}
	adm := adminDialogue{svc: svc}

	def := Definition{
		Flows:        []Flow{reg.flow(), adm.flow()},
		HomeFlow:     FlowRegistration,
		HomeState:    StateMain,
		FirstContact: reg.start,
		Commands: []Command{
			{Name: CommandStart, Flows: []FlowID{FlowRegistration}, Handler: reg.start},
			{Name: CommandAdmin, Handler: adm.activate},
		},
	}
	def.Transitions = append(def.Transitions, reg.transitions()...)
	def.Transitions = append(def.Transitions, adm.transitions()...)
	return def, nil
}

// New builds an Engine running the standard dialogues over store.
func New(svc Services, store SessionStore, opts ...Option) (*Engine, error) {
	def, err := NewDefinition(svc)
	if err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return NewEngine(def, store, o.logger)
}

func prompt(text string) func(context.Context, Session) (string, error) {
	return func(context.Context, Session) (string, error) {
		return text, nil
	}
}

func choices(values ...string) func(Session) InputSpec {
	return func(Session) InputSpec {
		return InputSpec{Choices: values}
	}
}

func freeText(hint string) func(Session) InputSpec {
	return func(Session) InputSpec {
		return InputSpec{Hint: hint}
	}
}

// enumerated declares an enumerated input even when values is empty, so
// nothing is accepted as free text.
func enumerated(values []string) InputSpec {
	if values == nil {
		values = []string{}
	}
	return InputSpec{Choices: values}
}
