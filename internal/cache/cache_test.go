package cache

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryCache(t *testing.T) {
	Convey("Given an in-process cache", t, func() {
		ctx := context.Background()
		now := time.Date(2019, time.September, 1, 12, 0, 0, 0, time.UTC)
		m := NewMemory()
		m.now = func() time.Time { return now }

		Convey("When a key was never stored", func() {
			_, ok, err := m.Get(ctx, "games?year=2019")

			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When a key is stored", func() {
			body := []byte(`[{"id":1}]`)
			So(m.Set(ctx, "games?year=2019", body, time.Hour), ShouldBeNil)
			body[0] = 'x'

			Convey("Then it is returned unchanged before expiry", func() {
				got, ok, err := m.Get(ctx, "games?year=2019")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(string(got), ShouldEqual, `[{"id":1}]`)
			})

			Convey("Then it expires after its ttl", func() {
				now = now.Add(time.Hour)
				_, ok, err := m.Get(ctx, "games?year=2019")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(m.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a key is stored without ttl", func() {
			So(m.Set(ctx, "k", []byte("v"), 0), ShouldBeNil)
			now = now.Add(365 * 24 * time.Hour)

			_, ok, _ := m.Get(ctx, "k")
			So(ok, ShouldBeTrue)
		})
	})
}
