package recur

import (
	"fmt"
	"strings"

	"github.com/example/calhub/internal/model"
)

// FieldRestrictionError reports a patch that touches fields the target
// event's type does not allow. It names every offending field and the full
// allowed set so the caller can correct the request in one pass.
type FieldRestrictionError struct {
	EventType  model.EventType
	Disallowed []string
	Allowed    []string
}

func (e *FieldRestrictionError) Error() string {
	return fmt.Sprintf("fields not allowed for %s events: %s (allowed: %s)",
		e.EventType,
		strings.Join(e.Disallowed, ", "),
		strings.Join(e.Allowed, ", "))
}

// allowedPatchFields maps restricted event types to the patch fields their
// backend accepts. Types absent from the map allow the full field set.
var allowedPatchFields = map[model.EventType][]string{
	model.TypeBirthday: {
		model.FieldTitle,
		model.FieldReminders,
		model.FieldStart,
		model.FieldEnd,
		model.FieldIsAllDay,
	},
	model.TypeFromGmail: {
		model.FieldReminders,
		model.FieldAttendees,
	},
}

// CheckFieldRestrictions validates the patch against the allow-list for the
// target's event type. It runs before any scope resolution or backend
// mutation.
func CheckFieldRestrictions(t model.EventType, patch model.EventPatch) error {
	allowed, restricted := allowedPatchFields[t]
	if !restricted {
		return nil
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = true
	}

	var disallowed []string
	for _, f := range patch.Fields() {
		if !allowedSet[f] {
			disallowed = append(disallowed, f)
		}
	}
	if len(disallowed) == 0 {
		return nil
	}
	return &FieldRestrictionError{EventType: t, Disallowed: disallowed, Allowed: allowed}
}
