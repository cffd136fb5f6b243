package mongostore

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// CreateProject writes the project and its owner membership in one
// transaction, which needs a replica set or sharded cluster.
func (s *Store) CreateProject(ctx context.Context, p project.Project, owner membership.Member) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.col(colProjects).InsertOne(sc, toProjectDoc(p)); err != nil {
			return nil, err
		}
		if _, err := s.col(colMembers).InsertOne(sc, toMemberDoc(owner)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) Project(ctx context.Context, id string) (project.Project, error) {
	var doc projectDoc
	if err := s.findOne(ctx, colProjects, bson.M{"_id": id}, &doc, project.ErrNotFound); err != nil {
		return project.Project{}, err
	}
	return doc.project(), nil
}

type memberCount struct {
	ProjectID string `bson:"_id"`
	N         int    `bson:"n"`
}

func (s *Store) ProjectsForUser(ctx context.Context, userID string) ([]project.UserProject, error) {
	var memberships []memberDoc
	if err := s.findAll(ctx, colMembers, bson.M{"user_id": userID}, nil, &memberships); err != nil {
		return nil, err
	}
	out := make([]project.UserProject, 0, len(memberships))
	if len(memberships) == 0 {
		return out, nil
	}
	roles := make(map[string]membership.Role, len(memberships))
	ids := make([]string, 0, len(memberships))
	for _, d := range memberships {
		m, err := d.member()
		if err != nil {
			return nil, err
		}
		roles[m.ProjectID] = m.Role
		ids = append(ids, m.ProjectID)
	}

	var projects []projectDoc
	if err := s.findAll(ctx, colProjects, bson.M{"_id": bson.M{"$in": ids}}, newestFirst, &projects); err != nil {
		return nil, err
	}
	counts, err := s.memberCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range projects {
		out = append(out, project.UserProject{Project: d.project(), Role: roles[d.ID], MemberCount: counts[d.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) memberCounts(ctx context.Context, projectIDs []string) (map[string]int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"project_id": bson.M{"$in": projectIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$project_id", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.col(colMembers).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []memberCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ProjectID] = r.N
	}
	return counts, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) error {
	err := s.updateOne(ctx, colProjects, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"updated_at":  p.UpdatedAt,
	}}, project.ErrNotFound)
	if mongo.IsDuplicateKeyError(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteOne(ctx, colProjects, bson.M{"_id": id}, project.ErrNotFound)
}

func (s *Store) InsertTask(ctx context.Context, t project.Task) error {
	return s.insertOne(ctx, colTasks, toTaskDoc(t), project.ErrConflict)
}

func (s *Store) Task(ctx context.Context, id string) (project.Task, error) {
	var doc taskDoc
	if err := s.findOne(ctx, colTasks, bson.M{"_id": id}, &doc, project.ErrNotFound); err != nil {
		return project.Task{}, err
	}
	return doc.task(), nil
}

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]project.Task, error) {
	var docs []taskDoc
	if err := s.findAll(ctx, colTasks, bson.M{"project_id": projectID}, newestFirst, &docs); err != nil {
		return nil, err
	}
	out := make([]project.Task, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.task())
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, t project.Task) error {
	doc := toTaskDoc(t)
	return s.updateOne(ctx, colTasks, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"assigned_to": doc.AssignedTo,
		"status":      doc.Status,
		"attachments": doc.Attachments,
		"updated_at":  doc.UpdatedAt,
	}}, project.ErrNotFound)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.deleteOne(ctx, colTasks, bson.M{"_id": id}, project.ErrNotFound)
}

func (s *Store) TaskIDs(ctx context.Context, projectID string) ([]string, error) {
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := s.findAll(ctx, colTasks, bson.M{"project_id": projectID}, nil, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) DeleteTasks(ctx context.Context, projectID string) (int64, error) {
	return s.deleteMany(ctx, colTasks, bson.M{"project_id": projectID})
}

func (s *Store) InsertSubtask(ctx context.Context, st project.Subtask) error {
	return s.insertOne(ctx, colSubtasks, subtaskDoc(st), project.ErrConflict)
}

func (s *Store) Subtask(ctx context.Context, id string) (project.Subtask, error) {
	var doc subtaskDoc
	if err := s.findOne(ctx, colSubtasks, bson.M{"_id": id}, &doc, project.ErrNotFound); err != nil {
		return project.Subtask{}, err
	}
	return project.Subtask(doc), nil
}

func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]project.Subtask, error) {
	var docs []subtaskDoc
	order := bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	if err := s.findAll(ctx, colSubtasks, bson.M{"task_id": taskID}, order, &docs); err != nil {
		return nil, err
	}
	out := make([]project.Subtask, 0, len(docs))
	for _, d := range docs {
		out = append(out, project.Subtask(d))
	}
	return out, nil
}

func (s *Store) UpdateSubtask(ctx context.Context, st project.Subtask) error {
	return s.updateOne(ctx, colSubtasks, bson.M{"_id": st.ID}, bson.M{"$set": bson.M{
		"title":        st.Title,
		"is_completed": st.IsCompleted,
		"updated_at":   st.UpdatedAt,
	}}, project.ErrNotFound)
}

func (s *Store) DeleteSubtask(ctx context.Context, id string) error {
	return s.deleteOne(ctx, colSubtasks, bson.M{"_id": id}, project.ErrNotFound)
}

func (s *Store) DeleteSubtasks(ctx context.Context, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	return s.deleteMany(ctx, colSubtasks, bson.M{"task_id": bson.M{"$in": taskIDs}})
}

func (s *Store) InsertNote(ctx context.Context, n project.Note) error {
	return s.insertOne(ctx, colNotes, noteDoc(n), project.ErrConflict)
}

func (s *Store) Note(ctx context.Context, id string) (project.Note, error) {
	var doc noteDoc
	if err := s.findOne(ctx, colNotes, bson.M{"_id": id}, &doc, project.ErrNotFound); err != nil {
		return project.Note{}, err
	}
	return project.Note(doc), nil
}

func (s *Store) ListNotes(ctx context.Context, projectID string) ([]project.Note, error) {
	var docs []noteDoc
	if err := s.findAll(ctx, colNotes, bson.M{"project_id": projectID}, newestFirst, &docs); err != nil {
		return nil, err
	}
	out := make([]project.Note, 0, len(docs))
	for _, d := range docs {
		out = append(out, project.Note(d))
	}
	return out, nil
}

func (s *Store) UpdateNote(ctx context.Context, n project.Note) error {
	return s.updateOne(ctx, colNotes, bson.M{"_id": n.ID}, bson.M{"$set": bson.M{
		"content":    n.Content,
		"updated_at": n.UpdatedAt,
	}}, project.ErrNotFound)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return s.deleteOne(ctx, colNotes, bson.M{"_id": id}, project.ErrNotFound)
}

func (s *Store) DeleteNotes(ctx context.Context, projectID string) (int64, error) {
	return s.deleteMany(ctx, colNotes, bson.M{"project_id": projectID})
}
