package memory

import (
	"context"
	"sort"
	"time"

	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

// CreateProject stores the project and the owner row under one lock.
func (s *Store) CreateProject(_ context.Context, p project.Project, owner membership.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return project.ErrConflict
	}
	for _, existing := range s.projects {
		if sameFold(existing.Name, p.Name) {
			return project.ErrConflict
		}
	}
	s.projects[p.ID] = p
	s.members[memberKey{owner.ProjectID, owner.UserID}] = owner
	return nil
}

func (s *Store) Project(_ context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (s *Store) ProjectsForUser(_ context.Context, userID string) ([]project.UserProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for key := range s.members {
		counts[key.projectID]++
	}
	out := make([]project.UserProject, 0)
	for key, m := range s.members {
		if key.userID != userID {
			continue
		}
		p, ok := s.projects[key.projectID]
		if !ok {
			continue
		}
		out = append(out, project.UserProject{Project: p, Role: m.Role, MemberCount: counts[p.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return project.ErrNotFound
	}
	for id, existing := range s.projects {
		if id != p.ID && sameFold(existing.Name, p.Name) {
			return project.ErrConflict
		}
	}
	s.projects[p.ID] = p
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

// ---- tasks ----

func (s *Store) InsertTask(_ context.Context, t project.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[t.ProjectID]; !ok {
		return project.ErrNotFound
	}
	if _, ok := s.tasks[t.ID]; ok {
		return project.ErrConflict
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) Task(_ context.Context, id string) (project.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return project.Task{}, project.ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]project.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]project.Task, 0)
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, t project.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return project.ErrNotFound
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) TaskIDs(_ context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteTasks(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tasks {
		if t.ProjectID == projectID {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

// ---- subtasks ----

func (s *Store) InsertSubtask(_ context.Context, st project.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[st.TaskID]; !ok {
		return project.ErrNotFound
	}
	if _, ok := s.subtasks[st.ID]; ok {
		return project.ErrConflict
	}
	s.subtasks[st.ID] = st
	return nil
}

func (s *Store) Subtask(_ context.Context, id string) (project.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subtasks[id]
	if !ok {
		return project.Subtask{}, project.ErrNotFound
	}
	return st, nil
}

func (s *Store) ListSubtasks(_ context.Context, taskID string) ([]project.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]project.Subtask, 0)
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateSubtask(_ context.Context, st project.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[st.ID]; !ok {
		return project.ErrNotFound
	}
	s.subtasks[st.ID] = st
	return nil
}

func (s *Store) DeleteSubtask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.subtasks, id)
	return nil
}

func (s *Store) DeleteSubtasks(_ context.Context, taskIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		set[id] = struct{}{}
	}
	var n int64
	for id, st := range s.subtasks {
		if _, ok := set[st.TaskID]; ok {
			delete(s.subtasks, id)
			n++
		}
	}
	return n, nil
}

// ---- notes ----

func (s *Store) InsertNote(_ context.Context, n project.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[n.ProjectID]; !ok {
		return project.ErrNotFound
	}
	if _, ok := s.notes[n.ID]; ok {
		return project.ErrConflict
	}
	s.notes[n.ID] = n
	return nil
}

func (s *Store) Note(_ context.Context, id string) (project.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return project.Note{}, project.ErrNotFound
	}
	return n, nil
}

func (s *Store) ListNotes(_ context.Context, projectID string) ([]project.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]project.Note, 0)
	for _, n := range s.notes {
		if n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) UpdateNote(_ context.Context, n project.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[n.ID]; !ok {
		return project.ErrNotFound
	}
	s.notes[n.ID] = n
	return nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) DeleteNotes(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, note := range s.notes {
		if note.ProjectID == projectID {
			delete(s.notes, id)
			n++
		}
	}
	return n, nil
}

// newer orders newest first, then by id.
func newer(a, b time.Time, aID, bID string) bool {
	if a.Equal(b) {
		return aID > bID
	}
	return a.After(b)
}

func cloneTask(t project.Task) project.Task {
	if t.Attachments != nil {
		t.Attachments = append([]project.Attachment(nil), t.Attachments...)
	}
	return t
}
