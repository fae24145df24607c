package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/example/cohort-bot/internal/application"
)

// Admin states. The admin flow also has its own StateMain.
const (
	StateAddSchool         StateID = "AddSchool"
	StateAddDirection      StateID = "AddDirection"
	StateAddLecturer       StateID = "AddLecturer"
	StateAddTopic          StateID = "AddTopic"
	StateAddDescription    StateID = "AddDescription"
	StateAddLink           StateID = "AddLink"
	StateAddDate           StateID = "AddDate"
	StateDeleteLecture     StateID = "DeleteLecture"
	StateSelectLecture     StateID = "SelectLecture"
	StateSelectEditField   StateID = "SelectEditField"
	StateUpdateField       StateID = "UpdateField"
	StateSelectAlertSchool StateID = "SelectAlertSchool"
	StateSendAlert         StateID = "SendAlert"
	StateFormPairs         StateID = "FormPairs"
)

// Admin menu options.
const (
	OptionAddLecture    = "Add lecture"
	OptionDeleteLecture = "Delete lecture"
	OptionEditLecture   = "Edit lecture"
	OptionSendAlert     = "Send alert"
	OptionFormPairs     = "Form pairs"
	OptionExitAdmin     = "Exit admin"
	OptionAllSchools    = "All schools"
)

// Editable lecture fields as offered to the admin.
const (
	FieldSchool      = "School"
	FieldDirection   = "Direction"
	FieldLecturer    = "Lecturer"
	FieldTopic       = "Topic"
	FieldDescription = "Description"
	FieldLink        = "Link"
	FieldDate        = "Date"
)

const (
	scratchAdminStash    = "admin_stash"
	scratchDirection     = "direction"
	scratchLecturer      = "lecturer"
	scratchTopic         = "topic"
	scratchDescription   = "description"
	scratchLink          = "link"
	scratchLectureIDs    = "lecture_ids"
	scratchLectureID     = "lecture_id"
	scratchLectureSchool = "lecture_school"
	scratchEditField     = "edit_field"
	scratchPendingSchool = "pending_school"
	scratchAlertSchool   = "alert_school"
)

const (
	msgLectureGone = "That lecture no longer exists."
	msgDateHint    = "Enter the date as YYYY-MM-DD, for example 2024-09-10."
	msgNoLectures  = "No lectures yet."
)

type adminDialogue struct {
	svc Services
}

func adminMenu() []string {
	return []string{OptionAddLecture, OptionDeleteLecture, OptionEditLecture, OptionSendAlert, OptionFormPairs, OptionExitAdmin}
}

func activityLabels() []string {
	var labels []string
	for _, activity := range application.Activities() {
		labels = append(labels, activity.Label())
	}
	return labels
}

var toMain = &BackRule{Target: StateMain}

func (d adminDialogue) flow() Flow {
	return Flow{
		ID:      FlowAdmin,
		Initial: StateMain,
		States: []State{
			{ID: StateMain, Enter: prompt("Admin mode. Choose an action:"), Input: choices(adminMenu()...)},
			{ID: StateAddSchool, Enter: prompt("Choose the school for the lecture:"), Input: choices(application.Schools()...), Back: toMain},
			{
				ID: StateAddDirection,
				Enter: func(_ context.Context, s Session) (string, error) {
					return fmt.Sprintf("Choose the direction at %s:", s.Scratch[scratchSchool]), nil
				},
				Input: func(s Session) InputSpec {
					return enumerated(application.DirectionsFor(s.Scratch[scratchSchool]))
				},
				Back: toMain,
			},
			{ID: StateAddLecturer, Enter: prompt("Enter the lecturer:"), Input: freeText("The lecturer must not be empty."), Back: toMain},
			{ID: StateAddTopic, Enter: prompt("Enter the topic:"), Input: freeText("The topic must not be empty."), Back: toMain},
			{ID: StateAddDescription, Enter: prompt("Enter the description:"), Input: freeText("The description must not be empty."), Back: toMain},
			{ID: StateAddLink, Enter: prompt("Enter the link:"), Input: freeText("The link must not be empty."), Back: toMain},
			{ID: StateAddDate, Enter: prompt("Enter the lecture date (YYYY-MM-DD):"), Input: dateInput, Back: toMain},
			{ID: StateDeleteLecture, Enter: prompt("Choose the number of the lecture to delete:"), Input: lectureIndexInput, Back: toMain},
			{ID: StateSelectLecture, Enter: prompt("Choose the number of the lecture to edit:"), Input: lectureIndexInput, Back: toMain},
			{
				ID:    StateSelectEditField,
				Enter: prompt("Choose the field to change:"),
				Input: func(s Session) InputSpec {
					return InputSpec{Choices: editableFields(s.Scratch[scratchLectureSchool])}
				},
				Back: &BackRule{Target: StateSelectLecture, KeepScratch: true},
			},
			{ID: StateUpdateField, Enter: d.enterUpdateField, Input: updateFieldInput, Back: &BackRule{Target: StateSelectEditField, KeepScratch: true}},
			{
				ID:    StateSelectAlertSchool,
				Enter: prompt("Choose who receives the alert:"),
				Input: choices(append(application.Schools(), OptionAllSchools)...),
				Back:  toMain,
			},
			{
				ID:    StateSendAlert,
				Enter: prompt("Enter the alert text:"),
				Input: freeText("The alert text must not be empty."),
				Back:  &BackRule{Target: StateSelectAlertSchool, KeepScratch: true},
			},
			{ID: StateFormPairs, Enter: prompt("Choose the activity to pair:"), Input: choices(activityLabels()...), Back: toMain},
		},
		ScratchKeys: []string{
			scratchSchool, scratchDirection, scratchLecturer, scratchTopic, scratchDescription, scratchLink,
			scratchLectureIDs, scratchLectureID, scratchLectureSchool, scratchEditField, scratchPendingSchool,
			scratchAlertSchool,
		},
		PersistentKeys: []string{scratchAdminStash},
	}
}

func (d adminDialogue) transitions() []Transition {
	accept := func(state StateID, h Handler) Transition {
		return Transition{Flow: FlowAdmin, State: state, Class: InputChoice, Handler: h}
	}
	text := func(state StateID, h Handler) Transition {
		return Transition{Flow: FlowAdmin, State: state, Class: InputText, Handler: h}
	}
	return []Transition{
		accept(StateMain, d.menu),
		{Flow: FlowAdmin, State: StateMain, Class: InputInvalid, Handler: replyOnly("Please choose an action from the admin menu.")},
		accept(StateAddSchool, d.addSchool),
		accept(StateAddDirection, remember(scratchDirection, StateAddLecturer)),
		text(StateAddLecturer, remember(scratchLecturer, StateAddTopic)),
		text(StateAddTopic, remember(scratchTopic, StateAddDescription)),
		text(StateAddDescription, remember(scratchDescription, StateAddLink)),
		text(StateAddLink, remember(scratchLink, StateAddDate)),
		text(StateAddDate, d.addDate),
		accept(StateDeleteLecture, d.deleteLecture),
		accept(StateSelectLecture, d.selectLecture),
		accept(StateSelectEditField, d.selectEditField),
		accept(StateUpdateField, d.updateField),
		text(StateUpdateField, d.updateField),
		accept(StateSelectAlertSchool, d.selectAlertSchool),
		text(StateSendAlert, d.sendAlert),
		accept(StateFormPairs, d.formPairs),
	}
}

// remember records the input under key and advances to next.
func remember(key string, next StateID) Handler {
	return func(_ context.Context, t *Turn) (Outcome, error) {
		t.Session.Scratch[key] = t.Input
		return Outcome{Next: next}, nil
	}
}

func dateInput(Session) InputSpec {
	return InputSpec{
		Check: func(text string) error {
			_, err := application.ParseLectureDate(text)
			return err
		},
		Hint: msgDateHint,
	}
}

func lectureIndexInput(s Session) InputSpec {
	ids := splitIDs(s.Scratch[scratchLectureIDs])
	var indexes []string
	for i := range ids {
		indexes = append(indexes, strconv.Itoa(i))
	}
	return enumerated(indexes)
}

func editableFields(school string) []string {
	fields := []string{FieldSchool}
	if application.RequiresDirection(school) {
		fields = append(fields, FieldDirection)
	}
	return append(fields, FieldLecturer, FieldTopic, FieldDescription, FieldLink, FieldDate)
}

func updateFieldInput(s Session) InputSpec {
	switch s.Scratch[scratchEditField] {
	case FieldSchool:
		return InputSpec{Choices: application.Schools()}
	case FieldDirection:
		return enumerated(application.DirectionsFor(targetSchool(s)))
	case FieldDate:
		return dateInput(s)
	default:
		return InputSpec{Hint: "The new value must not be empty."}
	}
}

// targetSchool is the school the edited lecture will belong to once the
// pending change lands.
func targetSchool(s Session) string {
	if pending := s.Scratch[scratchPendingSchool]; pending != "" {
		return pending
	}
	return s.Scratch[scratchLectureSchool]
}

func (d adminDialogue) enterUpdateField(_ context.Context, s Session) (string, error) {
	field := s.Scratch[scratchEditField]
	switch field {
	case FieldSchool:
		return "Choose the new school:", nil
	case FieldDirection:
		return fmt.Sprintf("Choose the direction at %s:", targetSchool(s)), nil
	case FieldDate:
		return "Enter the new date (YYYY-MM-DD):", nil
	}
	return fmt.Sprintf("Enter the new value for %s:", strings.ToLower(field)), nil
}

// activate enters admin mode when the passphrase checks out. A wrong
// passphrase is answered like any other unknown input.
func (d adminDialogue) activate(ctx context.Context, t *Turn) (Outcome, error) {
	if err := d.svc.Gate.Check(t.Input); err != nil {
		if errors.Is(err, application.ErrUnauthorized) {
			return Outcome{Reply: "Unknown command."}, nil
		}
		return Outcome{}, err
	}
	stash, err := d.svc.Participants.ActivateAdmin(ctx, t.Session.UserID)
	if err != nil {
		return Outcome{}, err
	}
	t.Session.Scratch = map[string]string{scratchAdminStash: stash}
	return Outcome{Reply: "Admin mode activated.", Flow: FlowAdmin, Next: StateMain}, nil
}

func (d adminDialogue) menu(ctx context.Context, t *Turn) (Outcome, error) {
	switch t.Input {
	case OptionAddLecture:
		return Outcome{Next: StateAddSchool, ClearScratch: true}, nil
	case OptionDeleteLecture:
		return d.snapshot(ctx, t, StateDeleteLecture)
	case OptionEditLecture:
		return d.snapshot(ctx, t, StateSelectLecture)
	case OptionSendAlert:
		return Outcome{Next: StateSelectAlertSchool, ClearScratch: true}, nil
	case OptionFormPairs:
		return Outcome{Next: StateFormPairs}, nil
	case OptionExitAdmin:
		if err := d.svc.Participants.DeactivateAdmin(ctx, t.Session.UserID, t.Session.Scratch[scratchAdminStash]); err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: "Admin mode deactivated.", Exit: true}, nil
	}
	return Outcome{Reply: "Please choose an action from the admin menu."}, nil
}

// snapshot lists every lecture, records the id order in scratch and moves to
// next, where the admin picks a lecture by its position in this listing.
func (d adminDialogue) snapshot(ctx context.Context, t *Turn, next StateID) (Outcome, error) {
	lectures, err := d.svc.Lectures.List(ctx, application.LectureQuery{})
	if err != nil {
		return Outcome{}, err
	}
	if len(lectures) == 0 {
		return Outcome{Reply: msgNoLectures}, nil
	}

	ids := make([]string, len(lectures))
	lines := make([]string, len(lectures))
	for i, l := range lectures {
		ids[i] = strconv.FormatInt(l.ID, 10)
		direction := "no direction"
		if l.Direction != nil {
			direction = *l.Direction
		}
		lines[i] = fmt.Sprintf("%d: %s, %s, %s, %s", i, l.School, l.Lecturer, l.Date.Format(application.LectureDateLayout), direction)
	}
	for k := range t.Session.Scratch {
		if k != scratchAdminStash {
			delete(t.Session.Scratch, k)
		}
	}
	t.Session.Scratch[scratchLectureIDs] = strings.Join(ids, ",")
	return Outcome{Reply: strings.Join(lines, "\n"), Next: next}, nil
}

func (d adminDialogue) addSchool(_ context.Context, t *Turn) (Outcome, error) {
	t.Session.Scratch[scratchSchool] = t.Input
	if application.RequiresDirection(t.Input) {
		return Outcome{Next: StateAddDirection}, nil
	}
	delete(t.Session.Scratch, scratchDirection)
	return Outcome{Next: StateAddLecturer}, nil
}

func (d adminDialogue) addDate(ctx context.Context, t *Turn) (Outcome, error) {
	s := t.Session.Scratch
	lecture, err := d.svc.Lectures.Create(ctx, application.LectureDraft{
		School:      s[scratchSchool],
		Direction:   s[scratchDirection],
		Lecturer:    s[scratchLecturer],
		Topic:       s[scratchTopic],
		Description: s[scratchDescription],
		Link:        s[scratchLink],
		Date:        t.Input,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Reply:        fmt.Sprintf("Lecture added: %s on %s.", lecture.Topic, lecture.Date.Format(application.LectureDateLayout)),
		Next:         StateMain,
		ClearScratch: true,
	}, nil
}

// pickLecture resolves the chosen position against the recorded snapshot.
func pickLecture(t *Turn) (int64, error) {
	ids := splitIDs(t.Session.Scratch[scratchLectureIDs])
	idx, err := strconv.Atoi(t.Input)
	if err != nil || idx < 0 || idx >= len(ids) {
		return 0, fmt.Errorf("flow: lecture index %q outside snapshot", t.Input)
	}
	return strconv.ParseInt(ids[idx], 10, 64)
}

func (d adminDialogue) deleteLecture(ctx context.Context, t *Turn) (Outcome, error) {
	id, err := pickLecture(t)
	if err != nil {
		return Outcome{}, err
	}
	if err := d.svc.Lectures.Delete(ctx, id); err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return Outcome{Reply: msgLectureGone, Next: StateMain, ClearScratch: true}, nil
		}
		return Outcome{}, err
	}
	return Outcome{Reply: "Lecture deleted.", Next: StateMain, ClearScratch: true}, nil
}

func (d adminDialogue) selectLecture(ctx context.Context, t *Turn) (Outcome, error) {
	id, err := pickLecture(t)
	if err != nil {
		return Outcome{}, err
	}
	lecture, err := d.svc.Lectures.Get(ctx, id)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return Outcome{Reply: msgLectureGone, Next: StateMain, ClearScratch: true}, nil
		}
		return Outcome{}, err
	}
	t.Session.Scratch[scratchLectureID] = strconv.FormatInt(lecture.ID, 10)
	t.Session.Scratch[scratchLectureSchool] = lecture.School
	delete(t.Session.Scratch, scratchEditField)
	delete(t.Session.Scratch, scratchPendingSchool)
	return Outcome{Reply: application.FormatLecture(lecture), Next: StateSelectEditField}, nil
}

func (d adminDialogue) selectEditField(_ context.Context, t *Turn) (Outcome, error) {
	t.Session.Scratch[scratchEditField] = t.Input
	delete(t.Session.Scratch, scratchPendingSchool)
	return Outcome{Next: StateUpdateField}, nil
}

func (d adminDialogue) updateField(ctx context.Context, t *Turn) (Outcome, error) {
	s := t.Session.Scratch
	id, err := strconv.ParseInt(s[scratchLectureID], 10, 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("flow: lecture id %q in scratch: %w", s[scratchLectureID], err)
	}

	value := t.Input
	var patch application.LecturePatch
	switch s[scratchEditField] {
	case FieldSchool:
		if application.RequiresDirection(value) {
			s[scratchPendingSchool] = value
			s[scratchEditField] = FieldDirection
			return Outcome{Next: StateUpdateField}, nil
		}
		patch.School = &value
	case FieldDirection:
		if pending := s[scratchPendingSchool]; pending != "" {
			patch.School = &pending
		}
		patch.Direction = &value
	case FieldLecturer:
		patch.Lecturer = &value
	case FieldTopic:
		patch.Topic = &value
	case FieldDescription:
		patch.Description = &value
	case FieldLink:
		patch.Link = &value
	case FieldDate:
		patch.Date = &value
	default:
		return Outcome{}, fmt.Errorf("flow: unknown edit field %q", s[scratchEditField])
	}

	if _, err := d.svc.Lectures.Update(ctx, id, patch); err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return Outcome{Reply: msgLectureGone, Next: StateMain, ClearScratch: true}, nil
		}
		return Outcome{}, err
	}
	field := s[scratchEditField]
	if patch.School != nil && patch.Direction != nil {
		field = FieldSchool
	}
	return Outcome{Reply: fmt.Sprintf("%s updated.", field), Next: StateMain, ClearScratch: true}, nil
}

func (d adminDialogue) selectAlertSchool(_ context.Context, t *Turn) (Outcome, error) {
	t.Session.Scratch[scratchAlertSchool] = t.Input
	return Outcome{Next: StateSendAlert}, nil
}

func (d adminDialogue) sendAlert(ctx context.Context, t *Turn) (Outcome, error) {
	target := t.Session.Scratch[scratchAlertSchool]
	var school *string
	if target != OptionAllSchools {
		school = &target
	}
	report, err := d.svc.Alerts.Broadcast(ctx, school, t.Input)
	if err != nil {
		return Outcome{}, err
	}
	audience := target
	if school == nil {
		audience = "all schools"
	}
	return Outcome{
		Reply:        fmt.Sprintf("Alert sent to %d of %d participants (%s).", report.Delivered, report.Recipients, audience),
		Next:         StateMain,
		ClearScratch: true,
	}, nil
}

func (d adminDialogue) formPairs(ctx context.Context, t *Turn) (Outcome, error) {
	activity, ok := activityByLabel(t.Input)
	if !ok {
		return Outcome{Reply: "Please choose the activity from the menu."}, nil
	}
	result, err := d.svc.Pairing.RunRound(ctx, activity)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Reply: fmt.Sprintf("%s: %d pairs formed, %d waiting for the next round.",
			activity.Label(), result.PairsFormed, len(result.Requeued)),
		Next: StateMain,
	}, nil
}

func splitIDs(value string) []string {
	if value == "" {
		return nil
	}
	return slices.DeleteFunc(strings.Split(value, ","), func(s string) bool { return s == "" })
}
