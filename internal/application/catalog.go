package application

import (
	"fmt"
	"slices"
	"strings"
)

// AdminSchool is the sentinel school written to a participant record while
// its owner is in admin mode.
const AdminSchool = "ADMIN"

// NoPriorRecord is the admin stash value recorded when the participant had no
// record before admin mode was activated.
const NoPriorRecord = "<none>"

var schools = []string{"ШАР", "ШМР", "ШБР", "ШРИ", "ШОК", "ШМЯ"}

var schoolDirections = map[string][]string{
	"ШБР": {"Java", "C++", "Python"},
	"ШМР": {"Android", "iOS", "Flutter"},
}

// Schools returns the enumerated schools in display order.
func Schools() []string {
	return slices.Clone(schools)
}

// IsSchool reports whether school is one of the enumerated schools.
func IsSchool(school string) bool {
	return slices.Contains(schools, school)
}

// NormalizeSchool upper-cases and trims a school name typed by a user.
func NormalizeSchool(school string) string {
	return strings.ToUpper(strings.TrimSpace(school))
}

// RequiresDirection reports whether lectures and participants of school carry
// a direction.
func RequiresDirection(school string) bool {
	_, ok := schoolDirections[school]
	return ok
}

// DirectionsFor returns the directions of a direction-bearing school, or nil.
func DirectionsFor(school string) []string {
	return slices.Clone(schoolDirections[school])
}

// IsDirection reports whether direction belongs to school.
func IsDirection(school, direction string) bool {
	return slices.Contains(schoolDirections[school], direction)
}

// Activity identifies one of the recurring pairing activities.
type Activity string

const (
	ActivityCoffee    Activity = "coffee"
	ActivityInterview Activity = "interview"
)

// Activities lists every pairing activity.
func Activities() []Activity {
	return []Activity{ActivityCoffee, ActivityInterview}
}

// ParseActivity validates an activity identifier.
func ParseActivity(value string) (Activity, error) {
	switch Activity(strings.ToLower(strings.TrimSpace(value))) {
	case ActivityCoffee:
		return ActivityCoffee, nil
	case ActivityInterview:
		return ActivityInterview, nil
	}
	vErr := &ValidationError{}
	vErr.add("activity", fmt.Sprintf("unknown activity %q", value))
	return "", vErr
}

// Label returns the user-facing name of the activity.
func (a Activity) Label() string {
	switch a {
	case ActivityCoffee:
		return "Random Coffee"
	case ActivityInterview:
		return "Mock Interview"
	}
	return string(a)
}

// validateCohort checks the school/direction invariant shared by lectures and
// participants.
func validateCohort(school string, direction *string, vErr *ValidationError) {
	if !IsSchool(school) {
		vErr.add("school", "school must be one of "+strings.Join(schools, ", "))
		return
	}
	if RequiresDirection(school) {
		if direction == nil || !IsDirection(school, *direction) {
			vErr.add("direction", "direction must be one of "+strings.Join(schoolDirections[school], ", "))
		}
		return
	}
	if direction != nil {
		vErr.add("direction", "school "+school+" has no directions")
	}
}
