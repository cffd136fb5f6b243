package membership

import "fmt"

// Action is an operation guarded by the gate.
type Action uint8

const (
	ActionViewProject Action = iota + 1
	ActionUpdateProject
	ActionDeleteProject
	ActionViewMembers
	ActionAddMember
	ActionUpdateMember
	ActionRemoveMember
	ActionViewTasks
	ActionCreateTask
	ActionUpdateTask
	ActionDeleteTask
	ActionCreateSubtask
	ActionUpdateSubtask
	ActionDeleteSubtask
	ActionViewNotes
	ActionCreateNote
	ActionUpdateNote
	ActionDeleteNote
)

var (
	anyMember = Roles(RoleAdmin, RoleProjectAdmin, RoleMember)
	managers  = Roles(RoleAdmin, RoleProjectAdmin)
	adminOnly = Roles(RoleAdmin)
)

// Required returns the roles allowed to attempt the action. Ownership rules
// are layered on top by the caller.
func (a Action) Required() RoleSet {
	switch a {
	case ActionViewProject, ActionViewMembers, ActionViewTasks, ActionViewNotes:
		return anyMember
	case ActionUpdateTask, ActionUpdateSubtask:
		// members may move work assigned to them
		return anyMember
	case ActionAddMember,
		ActionCreateTask, ActionDeleteTask,
		ActionCreateSubtask, ActionDeleteSubtask,
		ActionCreateNote, ActionUpdateNote, ActionDeleteNote:
		return managers
	case ActionUpdateProject, ActionDeleteProject,
		ActionUpdateMember, ActionRemoveMember:
		return adminOnly
	}
	return 0
}

func (a Action) String() string {
	switch a {
	case ActionViewProject:
		return "project.view"
	case ActionUpdateProject:
		return "project.update"
	case ActionDeleteProject:
		return "project.delete"
	case ActionViewMembers:
		return "members.view"
	case ActionAddMember:
		return "members.add"
	case ActionUpdateMember:
		return "members.update"
	case ActionRemoveMember:
		return "members.remove"
	case ActionViewTasks:
		return "tasks.view"
	case ActionCreateTask:
		return "tasks.create"
	case ActionUpdateTask:
		return "tasks.update"
	case ActionDeleteTask:
		return "tasks.delete"
	case ActionCreateSubtask:
		return "subtasks.create"
	case ActionUpdateSubtask:
		return "subtasks.update"
	case ActionDeleteSubtask:
		return "subtasks.delete"
	case ActionViewNotes:
		return "notes.view"
	case ActionCreateNote:
		return "notes.create"
	case ActionUpdateNote:
		return "notes.update"
	case ActionDeleteNote:
		return "notes.delete"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}
