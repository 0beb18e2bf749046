package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/progression"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]model.UserProgress
	failSet atomic.Bool
	failGet atomic.Bool
	saves   atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]model.UserProgress)}
}

func (f *fakeStore) GetProgress(_ context.Context, userID string) (model.UserProgress, error) {
	if f.failGet.Load() {
		return model.UserProgress{}, errors.New("read failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.data[userID]
	if !ok {
		return model.UserProgress{}, model.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SaveProgress(_ context.Context, p model.UserProgress) error {
	if f.failSet.Load() {
		return errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[p.UserID] = p
	f.saves.Add(1)
	return nil
}

func (f *fakeStore) xp(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[userID].XP
}

func noJitter() int64 { return 0 }

func TestMessageGain(t *testing.T) {
	Convey("Given the default gain policy", t, func() {
		l := New(newFakeStore())

		Convey("Then gains are half the length clamped to [5, 1000]", func() {
			So(l.MessageGain(0), ShouldEqual, 5)
			So(l.MessageGain(9), ShouldEqual, 5)
			So(l.MessageGain(11), ShouldEqual, 5)
			So(l.MessageGain(13), ShouldEqual, 6)
			So(l.MessageGain(400), ShouldEqual, 200)
			So(l.MessageGain(5000), ShouldEqual, 1000)
			So(l.MessageGain(-3), ShouldEqual, 5)
		})
	})

	Convey("Given the default jitter", t, func() {
		l := New(newFakeStore(), WithSeed(1))

		Convey("Then it stays inside [0, 3]", func() {
			for i := 0; i < 500; i++ {
				j := l.jitter()
				So(j, ShouldBeBetweenOrEqual, 0, 3)
			}
		})
	})
}

func TestOnMessage(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a ledger with no jitter", t, func() {
		store := newFakeStore()
		l := New(store, WithJitter(noJitter))

		Convey("When a new user sends a message", func() {
			res, err := l.OnMessage(ctx, "u1", "alice", 40, t0)

			Convey("Then the record is created and persisted", func() {
				So(err, ShouldBeNil)
				So(res.Awarded, ShouldBeTrue)
				So(res.Gain, ShouldEqual, 20)
				So(res.Change, ShouldBeNil)
				So(res.Progress, ShouldResemble, model.UserProgress{UserID: "u1", XP: 20, Level: 1, Username: "alice"})
				So(store.xp("u1"), ShouldEqual, 20)
			})
		})

		Convey("When two messages arrive inside the cooldown window", func() {
			_, err := l.OnMessage(ctx, "u1", "alice", 40, t0)
			So(err, ShouldBeNil)
			res, err := l.OnMessage(ctx, "u1", "alice", 40, t0.Add(2999*time.Millisecond))

			Convey("Then the second one changes nothing", func() {
				So(err, ShouldBeNil)
				So(res.Awarded, ShouldBeFalse)
				So(store.xp("u1"), ShouldEqual, 20)
				So(store.saves.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the window has elapsed", func() {
			_, _ = l.OnMessage(ctx, "u1", "alice", 40, t0)
			res, err := l.OnMessage(ctx, "u1", "alice", 40, t0.Add(3*time.Second))

			Convey("Then XP is awarded again", func() {
				So(err, ShouldBeNil)
				So(res.Awarded, ShouldBeTrue)
				So(store.xp("u1"), ShouldEqual, 40)
			})
		})

		Convey("When different users message at the same instant", func() {
			_, _ = l.OnMessage(ctx, "u1", "alice", 40, t0)
			res, _ := l.OnMessage(ctx, "u2", "bob", 40, t0)

			Convey("Then cooldowns are independent", func() {
				So(res.Awarded, ShouldBeTrue)
				So(store.xp("u2"), ShouldEqual, 20)
			})
		})

		Convey("When a message crosses a level threshold", func() {
			store.data["u1"] = model.UserProgress{UserID: "u1", XP: 580, Level: 1, Username: "old"}
			res, err := l.OnMessage(ctx, "u1", "alice", 40, t0)

			Convey("Then a level change is emitted and the name refreshed", func() {
				So(err, ShouldBeNil)
				So(res.Change, ShouldNotBeNil)
				So(res.Change.OldLevel, ShouldEqual, 1)
				So(res.Change.NewLevel, ShouldEqual, 2)
				So(res.Change.DisplayName, ShouldEqual, "alice")
				So(res.Progress.Level, ShouldEqual, progression.LevelFor(res.Progress.XP))
			})
		})

		Convey("When persistence fails", func() {
			store.failSet.Store(true)
			_, err := l.OnMessage(ctx, "u1", "alice", 40, t0)

			Convey("Then the error is a persistence failure and the claim is released", func() {
				So(errors.Is(err, model.ErrPersistence), ShouldBeTrue)
				So(store.xp("u1"), ShouldEqual, 0)
				So(l.TrackedCooldowns(), ShouldEqual, 0)

				store.failSet.Store(false)
				res, err := l.OnMessage(ctx, "u1", "alice", 40, t0.Add(time.Millisecond))
				So(err, ShouldBeNil)
				So(res.Awarded, ShouldBeTrue)
			})
		})

		Convey("When a retry fails after an earlier award", func() {
			_, _ = l.OnMessage(ctx, "u1", "alice", 40, t0)
			store.failSet.Store(true)
			_, err := l.OnMessage(ctx, "u1", "alice", 40, t0.Add(4*time.Second))
			store.failSet.Store(false)

			Convey("Then the previous award time is restored", func() {
				So(err, ShouldNotBeNil)
				res, _ := l.OnMessage(ctx, "u1", "alice", 40, t0.Add(4*time.Second))
				So(res.Awarded, ShouldBeTrue)
				res, _ = l.OnMessage(ctx, "u1", "alice", 40, t0.Add(5*time.Second))
				So(res.Awarded, ShouldBeFalse)
			})
		})

		Convey("When the store cannot be read", func() {
			store.failGet.Store(true)
			_, err := l.OnMessage(ctx, "u1", "alice", 40, t0)

			Convey("Then nothing is reported as success", func() {
				So(errors.Is(err, model.ErrPersistence), ShouldBeTrue)
				So(l.TrackedCooldowns(), ShouldEqual, 0)
			})
		})

		Convey("When the user id is empty", func() {
			_, err := l.OnMessage(ctx, "", "alice", 40, t0)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}

func TestOnMessageConcurrent(t *testing.T) {
	Convey("Given many concurrent messages from one user inside one window", t, func() {
		store := newFakeStore()
		l := New(store, WithJitter(noJitter))
		now := time.Now()

		var wg sync.WaitGroup
		var awarded atomic.Int64
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := l.OnMessage(context.Background(), "u1", "alice", 40, now)
				if err == nil && res.Awarded {
					awarded.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one message is awarded", func() {
			So(awarded.Load(), ShouldEqual, 1)
			So(store.xp("u1"), ShouldEqual, 20)
		})
	})
}

func TestGrant(t *testing.T) {
	ctx := context.Background()

	Convey("Given a user with some XP", t, func() {
		store := newFakeStore()
		store.data["u1"] = model.UserProgress{UserID: "u1", XP: 100, Level: 1, Username: "alice"}
		l := New(store, WithJitter(noJitter))

		Convey("When granting zero or negative amounts", func() {
			_, errZero := l.Grant(ctx, "u1", "alice", 0)
			_, errNeg := l.Grant(ctx, "u1", "alice", -5)

			Convey("Then both fail with InvalidAmount and XP is unchanged", func() {
				So(errors.Is(errZero, model.ErrInvalidAmount), ShouldBeTrue)
				So(errors.Is(errNeg, model.ErrInvalidAmount), ShouldBeTrue)
				So(store.xp("u1"), ShouldEqual, 100)
			})
		})

		Convey("When granting enough for several levels", func() {
			res, err := l.Grant(ctx, "u1", "", 2000)

			Convey("Then the change reports the full delta", func() {
				So(err, ShouldBeNil)
				So(res.Change, ShouldNotBeNil)
				So(res.Change.OldLevel, ShouldEqual, 1)
				So(res.Change.NewLevel, ShouldEqual, progression.LevelFor(2100))
				So(res.Change.Delta(), ShouldBeGreaterThan, 1)
				So(res.Progress.Username, ShouldEqual, "alice")
			})
		})

		Convey("When granting right after a message", func() {
			_, _ = l.OnMessage(ctx, "u1", "alice", 40, time.Now())
			res, err := l.Grant(ctx, "u1", "alice", 10)

			Convey("Then the cooldown does not apply", func() {
				So(err, ShouldBeNil)
				So(res.Awarded, ShouldBeTrue)
				So(store.xp("u1"), ShouldEqual, 130)
			})
		})

		Convey("When a grant would overflow", func() {
			store.data["u1"] = model.UserProgress{UserID: "u1", XP: 1 << 62, Level: 100}
			_, err := l.Grant(ctx, "u1", "alice", 1<<62)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidAmount), ShouldBeTrue)
			})
		})
	})
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()

	Convey("Given a level 3 user", t, func() {
		store := newFakeStore()
		store.data["u1"] = model.UserProgress{UserID: "u1", XP: 700, Level: 3, Username: "alice"}
		l := New(store)

		Convey("When correcting XP down", func() {
			res, err := l.Correct(ctx, "u1", "", 100)

			Convey("Then the level drops and the change points down", func() {
				So(err, ShouldBeNil)
				So(res.Gain, ShouldEqual, -600)
				So(res.Progress.Level, ShouldEqual, 1)
				So(res.Change.OldLevel, ShouldEqual, 3)
				So(res.Change.NewLevel, ShouldEqual, 1)
				So(res.Change.IsLevelUp(), ShouldBeFalse)
			})
		})

		Convey("When correcting to a negative value", func() {
			_, err := l.Correct(ctx, "u1", "", -1)

			Convey("Then it fails with InvalidAmount", func() {
				So(errors.Is(err, model.ErrInvalidAmount), ShouldBeTrue)
				So(store.xp("u1"), ShouldEqual, 700)
			})
		})

		Convey("When correcting within the same level", func() {
			res, err := l.Correct(ctx, "u1", "", 650)

			Convey("Then no change is emitted", func() {
				So(err, ShouldBeNil)
				So(res.Change, ShouldBeNil)
			})
		})
	})
}

func TestPruneCooldowns(t *testing.T) {
	Convey("Given users awarded at different times", t, func() {
		l := New(newFakeStore(), WithJitter(noJitter), WithCooldown(time.Second))
		t0 := time.Now()
		_, _ = l.OnMessage(context.Background(), "old", "", 10, t0)
		_, _ = l.OnMessage(context.Background(), "new", "", 10, t0.Add(900*time.Millisecond))

		Convey("When pruning after the first window", func() {
			removed := l.PruneCooldowns(t0.Add(time.Second))

			Convey("Then only expired entries are dropped", func() {
				So(removed, ShouldEqual, 1)
				So(l.TrackedCooldowns(), ShouldEqual, 1)
			})
		})
	})
}
