package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/xpboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRankView(t *testing.T) {
	Convey("Given a RankView", t, func() {
		view := types.RankView{
			Entry:          types.Entry{Rank: 2, UserID: "u1", Username: "alice", XP: 600, Level: 2},
			CurrentLevelXP: 587,
			NextLevelXP:    639,
			XPNeeded:       39,
			Percent:        25,
		}

		Convey("When encoding to JSON", func() {
			raw, err := json.Marshal(view)
			So(err, ShouldBeNil)

			var decoded map[string]any
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)

			Convey("Then the entry fields are flattened", func() {
				So(decoded["rank"], ShouldEqual, 2)
				So(decoded["user_id"], ShouldEqual, "u1")
				So(decoded["username"], ShouldEqual, "alice")
				So(decoded["xp_needed"], ShouldEqual, 39)
				So(decoded["max_level"], ShouldEqual, false)
			})
		})
	})
}
