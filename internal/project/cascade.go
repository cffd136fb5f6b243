package project

import (
	"context"
	"log/slog"
)

// CleanupProject removes everything a project owns: memberships, subtasks of
// its tasks, tasks and notes, in that order. Every step runs even if an
// earlier one failed, and every step is a no-op once done, so the cleanup
// can be run again for a project whose earlier cleanup was interrupted.
func (s *Service) CleanupProject(ctx context.Context, projectID string) CleanupReport {
	var report CleanupReport
	fail := func(step string, err error) {
		report.Failed = append(report.Failed, step)
		s.log.WarnContext(ctx, "cascade step failed",
			slog.String("step", step),
			slog.String("project_id", projectID),
			slog.Any("error", err),
		)
	}

	if n, err := s.members.RemoveAll(ctx, projectID); err != nil {
		fail("memberships", err)
	} else {
		report.Members = n
	}

	taskIDs, err := s.store.TaskIDs(ctx, projectID)
	if err != nil {
		fail("subtasks", err)
	} else if len(taskIDs) > 0 {
		if n, err := s.store.DeleteSubtasks(ctx, taskIDs); err != nil {
			fail("subtasks", err)
		} else {
			report.Subtasks = n
		}
	}

	if n, err := s.store.DeleteTasks(ctx, projectID); err != nil {
		fail("tasks", err)
	} else {
		report.Tasks = n
	}

	if n, err := s.store.DeleteNotes(ctx, projectID); err != nil {
		fail("notes", err)
	} else {
		report.Notes = n
	}
	return report
}

// cleanupTask removes a deleted task's subtasks.
func (s *Service) cleanupTask(ctx context.Context, taskID string) {
	n, err := s.store.DeleteSubtasks(ctx, []string{taskID})
	if err != nil {
		s.log.WarnContext(ctx, "cascade step failed",
			slog.String("step", "subtasks"),
			slog.String("task_id", taskID),
			slog.Any("error", err),
		)
		return
	}
	s.log.DebugContext(ctx, "task subtasks removed", slog.String("task_id", taskID), slog.Int64("subtasks", n))
}
