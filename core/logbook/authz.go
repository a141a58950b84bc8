package logbook

import (
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

// Action is a capability on a student's logbook.
type Action string

const (
	ActionView          Action = "logbook:view"
	ActionEdit          Action = "logbook:edit"
	ActionRequestReview Action = "logbook:request_review"
	ActionLock          Action = "logbook:lock"
	ActionUnlock        Action = "logbook:unlock"
	ActionComment       Action = "logbook:comment"
	ActionExport        Action = "logbook:export"
)

// Can reports whether actor may perform action on the logbook of the student
// enrolled via e. All logbook authorization funnels through here; handlers
// and services must not re-derive role rules locally.
//
// Unlock carries an extra rule that depends on who applied the lock; see
// canUnlock.
func Can(actor user.User, action Action, e session.Enrollment) bool {
	if actor.IsAdmin() {
		return true
	}

	switch action {
	case ActionView:
		return actor.ID == e.StudentID || isAssignedSupervisor(actor, e)

	case ActionEdit, ActionRequestReview, ActionExport:
		// owning student only
		return actor.IsStudent() && actor.ID == e.StudentID

	case ActionLock, ActionUnlock, ActionComment:
		return isAssignedSupervisor(actor, e)
	}
	return false
}

// canUnlock applies the lock-ownership rule on top of Can: a supervisor may
// only release a lock applied by their own supervisor type, while admins may
// release any lock.
func canUnlock(actor user.User, e session.Enrollment, lockedBy string) bool {
	if !Can(actor, ActionUnlock, e) {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	switch lockedBy {
	case LockedByIndustrySupervisor:
		return actor.IsIndustrySupervisor()
	case LockedBySchoolSupervisor:
		return actor.IsSchoolSupervisor()
	}
	// MANUAL locks are admin-only to release.
	return false
}

func isAssignedSupervisor(actor user.User, e session.Enrollment) bool {
	if actor.IsIndustrySupervisor() && e.IndustrySupervisorID.Valid && e.IndustrySupervisorID.String == actor.ID {
		return true
	}
	if actor.IsSchoolSupervisor() && e.SchoolSupervisorID.Valid && e.SchoolSupervisorID.String == actor.ID {
		return true
	}
	return false
}
