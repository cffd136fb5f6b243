package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"taskhub.dev/internal/membership"
)

// Member is on the authorization path of every request, so it skips the user
// columns.
func (s *Store) Member(ctx context.Context, projectID, userID string) (membership.Member, error) {
	var doc memberDoc
	if err := s.findOne(ctx, colMembers, bson.M{"_id": memberID(projectID, userID)}, &doc, membership.ErrNotFound); err != nil {
		return membership.Member{}, err
	}
	return doc.member()
}

func (s *Store) InsertMember(ctx context.Context, m membership.Member) error {
	return s.insertOne(ctx, colMembers, toMemberDoc(m), membership.ErrAlreadyMember)
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]membership.Member, error) {
	var docs []memberDoc
	order := bson.D{{Key: "created_at", Value: 1}, {Key: "user_id", Value: 1}}
	if err := s.findAll(ctx, colMembers, bson.M{"project_id": projectID}, order, &docs); err != nil {
		return nil, err
	}
	out := make([]membership.Member, 0, len(docs))
	for _, d := range docs {
		m, err := d.member()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return s.withUsers(ctx, out), nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role membership.Role) error {
	return s.updateOne(ctx, colMembers, bson.M{"_id": memberID(projectID, userID)},
		bson.M{"$set": bson.M{"role": role.String(), "updated_at": time.Now().UTC()}},
		membership.ErrNotFound)
}

func (s *Store) DeleteMember(ctx context.Context, projectID, userID string) error {
	return s.deleteOne(ctx, colMembers, bson.M{"_id": memberID(projectID, userID)}, membership.ErrNotFound)
}

func (s *Store) DeleteMembers(ctx context.Context, projectID string) (int64, error) {
	return s.deleteMany(ctx, colMembers, bson.M{"project_id": projectID})
}

func (s *Store) ProjectCreator(ctx context.Context, projectID string) (string, error) {
	var doc projectDoc
	if err := s.findOne(ctx, colProjects, bson.M{"_id": projectID}, &doc, membership.ErrNotFound); err != nil {
		return "", err
	}
	return doc.CreatedBy, nil
}

// withUsers fills in user columns. A failed lookup leaves them empty.
func (s *Store) withUsers(ctx context.Context, members []membership.Member) []membership.Member {
	if len(members) == 0 {
		return members
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	var users []userDoc
	if err := s.findAll(ctx, colUsers, bson.M{"_id": bson.M{"$in": ids}}, nil, &users); err != nil {
		return members
	}
	byID := make(map[string]userDoc, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range members {
		if u, ok := byID[members[i].UserID]; ok {
			members[i].Username = u.Username
			members[i].Email = u.Email
			members[i].Name = u.Name
		}
	}
	return members
}
