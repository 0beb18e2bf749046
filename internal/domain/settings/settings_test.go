package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/xpboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakePersister struct {
	saved   *model.Settings
	saves   int
	failSet bool
	failGet bool
}

func (f *fakePersister) LoadSettings(context.Context) (model.Settings, error) {
	if f.failGet {
		return model.Settings{}, errors.New("io")
	}
	if f.saved == nil {
		return model.Settings{}, model.ErrNotFound
	}
	return f.saved.Clone(), nil
}

func (f *fakePersister) SaveSettings(_ context.Context, s model.Settings) error {
	if f.failSet {
		return errors.New("disk full")
	}
	c := s.Clone()
	f.saved = &c
	f.saves++
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given nothing was saved", t, func() {
		s := New(&fakePersister{})

		Convey("Then Load keeps the defaults", func() {
			So(s.Load(ctx), ShouldBeNil)
			So(s.Starboard(), ShouldResemble, model.DefaultStarboardConfig())
			So(s.LevelRoles(), ShouldBeEmpty)
		})
	})

	Convey("Given a saved record with gaps", t, func() {
		saved := model.Settings{
			Starboard:  model.StarboardConfig{Enabled: true, ChannelID: "stars"},
			LevelRoles: map[int]string{5: "roleA"},
		}
		s := New(&fakePersister{saved: &saved})

		Convey("Then Load fills defaults for missing fields", func() {
			So(s.Load(ctx), ShouldBeNil)
			sb := s.Starboard()
			So(sb.Emoji, ShouldEqual, model.DefaultStarEmoji)
			So(sb.Threshold, ShouldEqual, 3)
			So(sb.ChannelID, ShouldEqual, "stars")
			So(s.Snapshot().RoleNames, ShouldNotBeNil)
		})
	})

	Convey("Given the record cannot be read", t, func() {
		s := New(&fakePersister{failGet: true})

		Convey("Then Load reports a persistence failure", func() {
			So(errors.Is(s.Load(ctx), model.ErrPersistence), ShouldBeTrue)
		})
	})
}

func TestLevelRoles(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		p := &fakePersister{}
		s := New(p)

		Convey("When adding a role without a name", func() {
			So(s.AddLevelRole(ctx, 5, "roleA", ""), ShouldBeNil)

			Convey("Then it is persisted with the default label", func() {
				So(s.LevelRoles(), ShouldResemble, map[int]string{5: "roleA"})
				So(s.Snapshot().RoleNames["roleA"], ShouldEqual, "Level 5 Role")
				So(p.saved.LevelRoles[5], ShouldEqual, "roleA")
			})
		})

		Convey("When adding the same level twice", func() {
			So(s.AddLevelRole(ctx, 5, "roleA", "Regular"), ShouldBeNil)
			err := s.AddLevelRole(ctx, 5, "roleB", "")

			Convey("Then the second add fails with AlreadyExists", func() {
				So(errors.Is(err, model.ErrAlreadyExists), ShouldBeTrue)
				So(s.LevelRoles()[5], ShouldEqual, "roleA")
			})
		})

		Convey("When adding invalid input", func() {
			Convey("Then it is rejected before persisting", func() {
				So(errors.Is(s.AddLevelRole(ctx, 0, "roleA", ""), model.ErrInvalidArgument), ShouldBeTrue)
				So(errors.Is(s.AddLevelRole(ctx, 5, " ", ""), model.ErrInvalidArgument), ShouldBeTrue)
				So(p.saves, ShouldEqual, 0)
			})
		})

		Convey("When updating a level", func() {
			So(s.AddLevelRole(ctx, 5, "roleA", "Regular"), ShouldBeNil)

			Convey("And only the name is given", func() {
				So(s.UpdateLevelRole(ctx, 5, "", "Veteran"), ShouldBeNil)

				Convey("Then the role is kept and relabelled", func() {
					So(s.LevelRoles()[5], ShouldEqual, "roleA")
					So(s.Snapshot().RoleNames["roleA"], ShouldEqual, "Veteran")
				})
			})

			Convey("And a new role is given", func() {
				So(s.UpdateLevelRole(ctx, 5, "roleB", ""), ShouldBeNil)

				Convey("Then the old label is dropped", func() {
					snap := s.Snapshot()
					So(snap.LevelRoles[5], ShouldEqual, "roleB")
					So(snap.RoleNames, ShouldNotContainKey, "roleA")
					So(snap.RoleNames["roleB"], ShouldEqual, "Level 5 Role")
				})
			})

			Convey("And the level is unknown", func() {
				err := s.UpdateLevelRole(ctx, 9, "roleB", "")

				Convey("Then it fails with NotFound", func() {
					So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				})
			})
		})

		Convey("When removing levels that share a role", func() {
			So(s.AddLevelRole(ctx, 5, "roleA", "Regular"), ShouldBeNil)
			So(s.AddLevelRole(ctx, 10, "roleA", ""), ShouldBeNil)

			removed, err := s.RemoveLevelRole(ctx, 5)
			So(err, ShouldBeNil)
			So(removed, ShouldEqual, "roleA")

			Convey("Then the label survives while another level references it", func() {
				So(s.Snapshot().RoleNames["roleA"], ShouldEqual, "Regular")

				_, err := s.RemoveLevelRole(ctx, 10)
				So(err, ShouldBeNil)
				So(s.Snapshot().RoleNames, ShouldNotContainKey, "roleA")
			})
		})

		Convey("When removing an unknown level", func() {
			_, err := s.RemoveLevelRole(ctx, 42)

			Convey("Then it fails with NotFound", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When persisting fails", func() {
			p.failSet = true
			err := s.AddLevelRole(ctx, 5, "roleA", "")

			Convey("Then the visible configuration is unchanged", func() {
				So(errors.Is(err, model.ErrPersistence), ShouldBeTrue)
				So(s.LevelRoles(), ShouldBeEmpty)
				So(s.Snapshot().RoleNames, ShouldBeEmpty)
			})
		})
	})
}

func TestIgnoredChannels(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := New(&fakePersister{})

		Convey("When a channel is added", func() {
			So(s.AddIgnoredChannel(ctx, "spam"), ShouldBeNil)

			Convey("Then it is ignored and cannot be added twice", func() {
				So(s.IsIgnored("spam"), ShouldBeTrue)
				So(errors.Is(s.AddIgnoredChannel(ctx, "spam"), model.ErrAlreadyExists), ShouldBeTrue)
			})

			Convey("Then removing it restores XP accrual", func() {
				So(s.RemoveIgnoredChannel(ctx, "spam"), ShouldBeNil)
				So(s.IsIgnored("spam"), ShouldBeFalse)
			})
		})

		Convey("When removing an unknown channel", func() {
			Convey("Then it fails with NotFound", func() {
				So(errors.Is(s.RemoveIgnoredChannel(ctx, "nope"), model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When adding an empty id", func() {
			Convey("Then it is rejected", func() {
				So(errors.Is(s.AddIgnoredChannel(ctx, ""), model.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}

func TestUpdateStarboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default starboard", t, func() {
		p := &fakePersister{}
		s := New(p)

		Convey("When enabling it with a channel", func() {
			cfg, err := s.UpdateStarboard(ctx, StarboardPatch{Enabled: ptr(true), ChannelID: ptr("stars")})

			Convey("Then only the given fields change", func() {
				So(err, ShouldBeNil)
				So(cfg.Enabled, ShouldBeTrue)
				So(cfg.ChannelID, ShouldEqual, "stars")
				So(cfg.Threshold, ShouldEqual, 3)
				So(cfg.Emoji, ShouldEqual, model.DefaultStarEmoji)
				So(s.Starboard(), ShouldResemble, cfg)
			})
		})

		Convey("When setting a threshold below 1", func() {
			_, err := s.UpdateStarboard(ctx, StarboardPatch{Threshold: ptr(0)})

			Convey("Then it is rejected and nothing is saved", func() {
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
				So(p.saves, ShouldEqual, 0)
			})
		})

		Convey("When setting an empty emoji", func() {
			_, err := s.UpdateStarboard(ctx, StarboardPatch{Emoji: ptr(" ")})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When a snapshot is mutated by the caller", func() {
			snap := s.Snapshot()
			snap.Starboard.Threshold = 99
			snap.IgnoredChannels = append(snap.IgnoredChannels, "x")

			Convey("Then the store is unaffected", func() {
				So(s.Starboard().Threshold, ShouldEqual, 3)
				So(s.IsIgnored("x"), ShouldBeFalse)
			})
		})
	})
}
