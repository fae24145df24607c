package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/cohort-bot/internal/application"
)

// Registration states. StateMain is shared by name with the admin flow.
const (
	StateSelectSchool    StateID = "SelectSchool"
	StateSelectDirection StateID = "SelectDirection"
	StateMain            StateID = "Main"
)

// Student menu options.
const (
	OptionViewLectures = "View lectures"
	OptionWeekLectures = "Lectures this week"
)

const scratchSchool = "school"

type registrationDialogue struct {
	svc Services
}

func studentMenu() []string {
	return []string{
		OptionViewLectures,
		OptionWeekLectures,
		application.ActivityCoffee.Label(),
		application.ActivityInterview.Label(),
	}
}

func (d registrationDialogue) flow() Flow {
	return Flow{
		ID:      FlowRegistration,
		Initial: StateSelectSchool,
		States: []State{
			{
				ID:    StateSelectSchool,
				Enter: prompt("Choose your school:"),
				Input: choices(application.Schools()...),
			},
			{
				ID: StateSelectDirection,
				Enter: func(_ context.Context, s Session) (string, error) {
					return fmt.Sprintf("Choose your direction at %s:", s.Scratch[scratchSchool]), nil
				},
				Input: func(s Session) InputSpec {
					return enumerated(application.DirectionsFor(s.Scratch[scratchSchool]))
				},
				Back: &BackRule{Target: StateSelectSchool, KeepScratch: true},
			},
			{
				ID:    StateMain,
				Enter: prompt("Choose an action:"),
				Input: choices(studentMenu()...),
			},
		},
		ScratchKeys: []string{scratchSchool},
	}
}

func (d registrationDialogue) transitions() []Transition {
	return []Transition{
		{Flow: FlowRegistration, State: StateSelectSchool, Class: InputChoice, Handler: d.selectSchool},
		{Flow: FlowRegistration, State: StateSelectDirection, Class: InputChoice, Handler: d.selectDirection},
		{Flow: FlowRegistration, State: StateMain, Class: InputChoice, Handler: d.menu},
		{Flow: FlowRegistration, State: StateMain, Class: InputInvalid, Handler: replyOnly("Please choose an action from the menu.")},
	}
}

// start greets the user: registered participants land on the menu, everyone
// else starts registration.
func (d registrationDialogue) start(ctx context.Context, t *Turn) (Outcome, error) {
	participant, err := d.svc.Participants.Lookup(ctx, t.Session.UserID)
	switch {
	case err == nil:
		return Outcome{
			Reply: fmt.Sprintf("Welcome back! You are registered at %s.", participant.Cohort()),
			Flow:  FlowRegistration,
			Next:  StateMain,
		}, nil
	case errors.Is(err, application.ErrNotRegistered):
		return Outcome{
			Reply:        "Welcome! Let's get you registered.",
			Flow:         FlowRegistration,
			Next:         StateSelectSchool,
			ClearScratch: true,
		}, nil
	default:
		return Outcome{}, err
	}
}

func (d registrationDialogue) selectSchool(ctx context.Context, t *Turn) (Outcome, error) {
	school := t.Input
	if application.RequiresDirection(school) {
		t.Session.Scratch[scratchSchool] = school
		return Outcome{Next: StateSelectDirection}, nil
	}
	return d.register(ctx, t, school, "")
}

func (d registrationDialogue) selectDirection(ctx context.Context, t *Turn) (Outcome, error) {
	return d.register(ctx, t, t.Session.Scratch[scratchSchool], t.Input)
}

func (d registrationDialogue) register(ctx context.Context, t *Turn, school, direction string) (Outcome, error) {
	participant, err := d.svc.Participants.Register(ctx, t.Session.UserID, school, direction)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Reply:        fmt.Sprintf("Registration complete! %s.", participant.Cohort()),
		Next:         StateMain,
		ClearScratch: true,
	}, nil
}

func (d registrationDialogue) menu(ctx context.Context, t *Turn) (Outcome, error) {
	participant, err := d.svc.Participants.Lookup(ctx, t.Session.UserID)
	if errors.Is(err, application.ErrNotRegistered) {
		return Outcome{Reply: "You are not registered yet.", Next: StateSelectSchool}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	switch t.Input {
	case OptionViewLectures:
		lectures, err := d.svc.Lectures.List(ctx, application.QueryForParticipant(participant))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: lectureList(lectures, "No lectures yet.")}, nil
	case OptionWeekLectures:
		lectures, err := d.svc.Lectures.ListUpcoming(ctx, application.QueryForParticipant(participant))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: lectureList(lectures, "No lectures this week.")}, nil
	}

	activity, ok := activityByLabel(t.Input)
	if !ok {
		return Outcome{Reply: "Please choose an action from the menu."}, nil
	}
	optedIn, err := d.svc.Participants.ToggleOptIn(ctx, participant.Username, activity)
	if err != nil {
		return Outcome{}, err
	}
	if optedIn {
		return Outcome{Reply: fmt.Sprintf("You have joined %s!", activity.Label())}, nil
	}
	return Outcome{Reply: fmt.Sprintf("You have left %s.", activity.Label())}, nil
}

func activityByLabel(label string) (application.Activity, bool) {
	for _, activity := range application.Activities() {
		if activity.Label() == label {
			return activity, true
		}
	}
	return "", false
}

func lectureList(lectures []application.Lecture, empty string) string {
	if len(lectures) == 0 {
		return empty
	}
	blocks := make([]string, 0, len(lectures))
	for _, l := range lectures {
		blocks = append(blocks, application.FormatLecture(l))
	}
	return strings.Join(blocks, "\n\n")
}
