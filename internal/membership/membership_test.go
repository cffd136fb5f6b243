package membership

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeStore struct {
	creators map[string]string
	rows     map[[2]string]Member
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{creators: map[string]string{}, rows: map[[2]string]Member{}}
}

func (f *fakeStore) seedProject(projectID, creator string) {
	f.creators[projectID] = creator
	f.rows[[2]string{projectID, creator}] = Member{ProjectID: projectID, UserID: creator, Role: RoleAdmin}
}

func (f *fakeStore) Member(_ context.Context, projectID, userID string) (Member, error) {
	if f.err != nil {
		return Member{}, f.err
	}
	m, ok := f.rows[[2]string{projectID, userID}]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) InsertMember(_ context.Context, m Member) error {
	key := [2]string{m.ProjectID, m.UserID}
	if _, ok := f.rows[key]; ok {
		return ErrAlreadyMember
	}
	f.rows[key] = m
	return nil
}

func (f *fakeStore) ListMembers(_ context.Context, projectID string) ([]Member, error) {
	var out []Member
	for key, m := range f.rows {
		if key[0] == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMemberRole(_ context.Context, projectID, userID string, role Role) error {
	key := [2]string{projectID, userID}
	m, ok := f.rows[key]
	if !ok {
		return ErrNotFound
	}
	m.Role = role
	f.rows[key] = m
	return nil
}

func (f *fakeStore) DeleteMember(_ context.Context, projectID, userID string) error {
	key := [2]string{projectID, userID}
	if _, ok := f.rows[key]; !ok {
		return ErrNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeStore) DeleteMembers(_ context.Context, projectID string) (int64, error) {
	var n int64
	for key := range f.rows {
		if key[0] == projectID {
			delete(f.rows, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ProjectCreator(_ context.Context, projectID string) (string, error) {
	c, ok := f.creators[projectID]
	if !ok {
		return "", ErrNotFound
	}
	return c, nil
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"member":        RoleMember,
		" PROJECT_ADMIN": RoleProjectAdmin,
		"Admin":         RoleAdmin,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRoleJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleProjectAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"role":"PROJECT_ADMIN"}` {
		t.Fatalf("unexpected json %s", b)
	}
	var in struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"member"}`), &in); err != nil || in.Role != RoleMember {
		t.Fatalf("unmarshal: %v %v", in.Role, err)
	}
	if _, err := json.Marshal(RoleUnknown); err == nil {
		t.Fatal("expected error marshalling unknown role")
	}
}

func TestRoleSet(t *testing.T) {
	s := Roles(RoleAdmin, RoleProjectAdmin, RoleUnknown)
	if !s.Has(RoleAdmin) || !s.Has(RoleProjectAdmin) || s.Has(RoleMember) || s.Has(RoleUnknown) {
		t.Fatalf("unexpected set %s", s)
	}
	if s.String() != "{PROJECT_ADMIN,ADMIN}" {
		t.Fatalf("unexpected string %s", s)
	}
}

func TestPolicyTable(t *testing.T) {
	if !ActionUpdateTask.Required().Has(RoleMember) {
		t.Fatal("members must reach the task ownership check")
	}
	if ActionCreateTask.Required().Has(RoleMember) {
		t.Fatal("members cannot create tasks")
	}
	if ActionDeleteProject.Required().Has(RoleProjectAdmin) {
		t.Fatal("project admins cannot delete projects")
	}
	if !ActionAddMember.Required().Has(RoleProjectAdmin) || ActionAddMember.Required().Has(RoleMember) {
		t.Fatal("only admins and project admins may add members")
	}
	for _, a := range []Action{ActionUpdateMember, ActionRemoveMember} {
		if a.Required().Has(RoleProjectAdmin) || a.Required().Has(RoleMember) {
			t.Fatalf("%s must be admin only", a)
		}
	}
	for a := ActionViewProject; a <= ActionDeleteNote; a++ {
		if !a.Required().Has(RoleAdmin) {
			t.Fatalf("%s: admin must always pass the role check", a)
		}
	}
}

func TestRegistryAddAndUpdate(t *testing.T) {
	st := newFakeStore()
	st.seedProject("p1", "alice")
	r := NewRegistry(st)
	ctx := context.Background()

	if _, err := r.AddMember(ctx, "p1", "bob", RoleAdmin); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := r.AddMember(ctx, "missing", "bob", RoleMember); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	m, err := r.AddMember(ctx, "p1", "bob", RoleMember)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != RoleMember || m.CreatedAt.IsZero() {
		t.Fatalf("unexpected member %+v", m)
	}
	if _, err := r.AddMember(ctx, "p1", "bob", RoleMember); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	role, ok, err := r.GetRole(ctx, "p1", "bob")
	if err != nil || !ok || role != RoleMember {
		t.Fatalf("GetRole = %v %v %v", role, ok, err)
	}
	if _, ok, _ := r.GetRole(ctx, "p1", "carol"); ok {
		t.Fatal("carol is not a member")
	}

	if _, err := r.UpdateRole(ctx, "p1", "bob", RoleProjectAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateRole(ctx, "p1", "alice", RoleMember); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("creator demoted: %v", err)
	}
	if _, err := r.UpdateRole(ctx, "p1", "carol", RoleMember); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	st := newFakeStore()
	st.seedProject("p1", "alice")
	r := NewRegistry(st)
	ctx := context.Background()
	_, _ = r.AddMember(ctx, "p1", "bob", RoleMember)

	if err := r.RemoveMember(ctx, "p1", "alice"); !errors.Is(err, ErrCannotRemoveCreator) {
		t.Fatalf("expected ErrCannotRemoveCreator, got %v", err)
	}
	if err := r.RemoveMember(ctx, "p1", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveMember(ctx, "p1", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.RemoveMember(ctx, "", "bob"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	n, err := r.RemoveAll(ctx, "p1")
	if err != nil || n != 1 {
		t.Fatalf("RemoveAll = %d, %v", n, err)
	}
	if n, _ := r.RemoveAll(ctx, "p1"); n != 0 {
		t.Fatalf("second RemoveAll removed %d", n)
	}
}

func TestGateDecisions(t *testing.T) {
	st := newFakeStore()
	st.seedProject("p1", "alice")
	_ = st.InsertMember(context.Background(), Member{ProjectID: "p1", UserID: "bob", Role: RoleProjectAdmin})
	_ = st.InsertMember(context.Background(), Member{ProjectID: "p1", UserID: "carol", Role: RoleMember})

	var decisions []bool
	g := NewGate(st, WithDecisionObserver(func(_ string, allowed bool) { decisions = append(decisions, allowed) }))
	ctx := context.Background()

	role, err := g.AuthorizeAction(ctx, "alice", "p1", ActionDeleteProject, nil)
	if err != nil || role != RoleAdmin {
		t.Fatalf("admin denied: %v %v", role, err)
	}
	if _, err := g.AuthorizeAction(ctx, "bob", "p1", ActionDeleteProject, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := g.AuthorizeAction(ctx, "dave", "p1", ActionViewProject, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-member allowed: %v", err)
	}
	if _, err := g.AuthorizeAction(ctx, "", "p1", ActionViewProject, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty user allowed: %v", err)
	}
	if len(decisions) != 4 || !decisions[0] || decisions[1] || decisions[2] || decisions[3] {
		t.Fatalf("unexpected decisions %v", decisions)
	}
}

func TestGateOwnership(t *testing.T) {
	st := newFakeStore()
	st.seedProject("p1", "alice")
	_ = st.InsertMember(context.Background(), Member{ProjectID: "p1", UserID: "carol", Role: RoleMember})
	g := NewGate(st)
	ctx := context.Background()

	called := false
	owns := func(_ context.Context, role Role, userID string) (bool, error) {
		called = true
		return role == RoleMember && userID == "carol", nil
	}
	if _, err := g.AuthorizeAction(ctx, "carol", "p1", ActionUpdateTask, owns); err != nil {
		t.Fatalf("owner denied: %v", err)
	}
	if !called {
		t.Fatal("ownership not consulted")
	}

	called = false
	if _, err := g.AuthorizeAction(ctx, "carol", "p1", ActionDeleteTask, owns); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if called {
		t.Fatal("ownership consulted after role check failed")
	}

	loadErr := errors.New("task not found")
	failing := func(context.Context, Role, string) (bool, error) { return false, loadErr }
	if _, err := g.AuthorizeAction(ctx, "carol", "p1", ActionUpdateTask, failing); !errors.Is(err, loadErr) {
		t.Fatalf("expected ownership error to pass through, got %v", err)
	}
}

func TestGatePassesStoreErrors(t *testing.T) {
	st := newFakeStore()
	st.err = errors.New("db down")
	g := NewGate(st)
	if _, err := g.Authorize(context.Background(), "alice", "p1", Roles(RoleAdmin), nil); err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected store error, got %v", err)
	}
}
