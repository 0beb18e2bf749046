package roles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/xpboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeMutator struct {
	mu        sync.Mutex
	held      map[string]struct{}
	failRoles map[string]bool
	failRead  bool
	calls     []string
}

func newFakeMutator(held ...string) *fakeMutator {
	m := &fakeMutator{held: map[string]struct{}{}, failRoles: map[string]bool{}}
	for _, r := range held {
		m.held[r] = struct{}{}
	}
	return m
}

func (m *fakeMutator) GrantRole(_ context.Context, _, _, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "grant:"+roleID)
	if m.failRoles[roleID] {
		return errors.New("unknown role")
	}
	m.held[roleID] = struct{}{}
	return nil
}

func (m *fakeMutator) RevokeRole(_ context.Context, _, _, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "revoke:"+roleID)
	if m.failRoles[roleID] {
		return errors.New("missing permissions")
	}
	delete(m.held, roleID)
	return nil
}

func (m *fakeMutator) CurrentRoles(context.Context, string, string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errors.New("member not cached")
	}
	out := make(map[string]struct{}, len(m.held))
	for r := range m.held {
		out[r] = struct{}{}
	}
	return out, nil
}

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestRolesToApply(t *testing.T) {
	Convey("Given level roles {5: roleA, 10: roleB}", t, func() {
		levelRoles := map[int]string{5: "roleA", 10: "roleB"}

		Convey("When the member is level 7 and holds nothing", func() {
			plan := RolesToApply(7, levelRoles, set())

			Convey("Then roleA is granted and nothing revoked", func() {
				So(plan.Grant, ShouldEqual, "roleA")
				So(plan.Revoke, ShouldBeEmpty)
			})
		})

		Convey("When the member is level 12 and holds roleA", func() {
			plan := RolesToApply(12, levelRoles, set("roleA", "unrelated"))

			Convey("Then roleB is granted and roleA revoked", func() {
				So(plan.Grant, ShouldEqual, "roleB")
				So(plan.Revoke, ShouldResemble, []string{"roleA"})
			})
		})

		Convey("When the member is below every configured level", func() {
			plan := RolesToApply(3, levelRoles, set("roleB"))

			Convey("Then nothing is granted and held level roles are revoked", func() {
				So(plan.Grant, ShouldEqual, "")
				So(plan.Revoke, ShouldResemble, []string{"roleB"})
			})
		})

		Convey("When held roles are unknown", func() {
			plan := RolesToApply(12, map[int]string{5: "roleA", 7: "roleC", 10: "roleB"}, nil)

			Convey("Then every other level role is suggested", func() {
				So(plan.Grant, ShouldEqual, "roleB")
				So(plan.Revoke, ShouldResemble, []string{"roleA", "roleC"})
			})
		})

		Convey("When two levels share the target role", func() {
			plan := RolesToApply(12, map[int]string{5: "roleA", 10: "roleA", 3: "roleZ"}, nil)

			Convey("Then the shared role is never revoked", func() {
				So(plan.Grant, ShouldEqual, "roleA")
				So(plan.Revoke, ShouldResemble, []string{"roleZ"})
			})
		})

		Convey("When no level roles are configured", func() {
			plan := RolesToApply(50, nil, set("roleA"))

			Convey("Then the plan is empty", func() {
				So(plan.Grant, ShouldEqual, "")
				So(plan.Revoke, ShouldBeEmpty)
			})
		})
	})
}

func TestSynchronizerApply(t *testing.T) {
	ctx := context.Background()
	levelRoles := map[int]string{5: "roleA", 10: "roleB", 20: "roleC"}

	Convey("Given a member holding roleA who reached level 12", t, func() {
		m := newFakeMutator("roleA", "unrelated")
		s := NewSynchronizer(m)

		Convey("When applying", func() {
			rep := s.Apply(ctx, "g1", "u1", 12, levelRoles)

			Convey("Then roleA is revoked before roleB is granted", func() {
				So(rep.Err, ShouldBeNil)
				So(m.calls, ShouldResemble, []string{"revoke:roleA", "grant:roleB"})
				So(rep.Granted, ShouldResemble, []string{"roleB"})
				So(rep.Revoked, ShouldResemble, []string{"roleA"})
				So(m.held, ShouldContainKey, "unrelated")
			})
		})
	})

	Convey("Given a member who already holds the target role", t, func() {
		m := newFakeMutator("roleB")
		s := NewSynchronizer(m)
		rep := s.Apply(ctx, "g1", "u1", 12, levelRoles)

		Convey("Then no call is made", func() {
			So(rep.Err, ShouldBeNil)
			So(m.calls, ShouldBeEmpty)
		})
	})

	Convey("Given a revoke and a grant that both fail", t, func() {
		m := newFakeMutator("roleA", "roleC")
		m.failRoles["roleA"] = true
		m.failRoles["roleB"] = true
		s := NewSynchronizer(m)
		rep := s.Apply(ctx, "g1", "u1", 12, levelRoles)

		Convey("Then every call is attempted and each failure is reported", func() {
			So(m.calls, ShouldResemble, []string{"revoke:roleA", "revoke:roleC", "grant:roleB"})
			So(rep.Revoked, ShouldResemble, []string{"roleC"})
			So(rep.Granted, ShouldBeEmpty)
			So(errors.Is(rep.Err, model.ErrCollaborator), ShouldBeTrue)

			var targets []string
			for _, e := range rep.Err.(interface{ Unwrap() []error }).Unwrap() {
				var ce *model.CollaboratorError
				So(errors.As(e, &ce), ShouldBeTrue)
				targets = append(targets, ce.Op+":"+ce.Target)
			}
			So(targets, ShouldResemble, []string{"revoke_role:roleA", "grant_role:roleB"})
		})
	})

	Convey("Given the member's roles cannot be read", t, func() {
		m := newFakeMutator()
		m.failRead = true
		s := NewSynchronizer(m)
		rep := s.Apply(ctx, "g1", "u1", 12, levelRoles)

		Convey("Then every candidate is revoked and the grant still happens", func() {
			So(m.calls, ShouldResemble, []string{"revoke:roleA", "revoke:roleC", "grant:roleB"})
			So(errors.Is(rep.Err, model.ErrCollaborator), ShouldBeTrue)
		})
	})
}
