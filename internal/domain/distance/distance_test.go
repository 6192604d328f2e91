package distance_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/flightrisk/internal/domain/distance"
	"github.com/okian/flightrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const table = `Origin,Destination,Distance
ATL,LAX,1946.0
ORD,JFK,740
DEN,SEA,
SFO,BOS,abc
LAX,ATL,9999
MIA,PHX,NaN
BOS,SEA,+Inf
DFW,IAH,-5
`

func TestTableLookup(t *testing.T) {
	Convey("Given a parsed distance table", t, func() {
		tbl, err := distance.Parse(strings.NewReader(table))
		So(err, ShouldBeNil)

		Convey("When looking up a pair in either direction", func() {
			ab, okAB := tbl.Lookup("ATL", "LAX")
			ba, okBA := tbl.Lookup("LAX", "ATL")

			Convey("Then both directions agree on the first row", func() {
				So(okAB, ShouldBeTrue)
				So(okBA, ShouldBeTrue)
				So(ab, ShouldEqual, 1946.0)
				So(ba, ShouldEqual, ab)
			})
		})

		Convey("When every known pair is queried both ways", func() {
			for _, p := range [][2]string{{"ORD", "JFK"}, {"ATL", "LAX"}, {"DEN", "SEA"}} {
				a, _ := tbl.Lookup(p[0], p[1])
				b, _ := tbl.Lookup(p[1], p[0])
				So(a, ShouldEqual, b)
			}
		})

		Convey("When the pair is unknown, empty or malformed", func() {
			for _, p := range [][2]string{{"XXX", "YYY"}, {"DEN", "SEA"}, {"SFO", "BOS"}, {"MIA", "PHX"}, {"SEA", "BOS"}, {"DFW", "IAH"}} {
				v, ok := tbl.Lookup(p[0], p[1])
				So(ok, ShouldBeFalse)
				So(v, ShouldEqual, distance.Unknown)
			}
		})

		Convey("Then duplicate pairs count once", func() {
			So(tbl.Len(), ShouldEqual, 7)
		})
	})
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a resolver backed by a CSV file", t, func() {
		path := filepath.Join(t.TempDir(), "distances.csv")
		So(os.WriteFile(path, []byte(table), 0o600), ShouldBeNil)
		r := distance.NewResolver(path)

		Convey("When resolving a known pair", func() {
			So(r.Resolve(ctx, "atl", "lax"), ShouldEqual, 1946.0)
		})

		Convey("When resolving an unknown pair", func() {
			So(r.Resolve(ctx, "ATL", "ZZZ"), ShouldEqual, 1.0)
		})
	})

	Convey("Given a resolver whose table does not exist", t, func() {
		r := distance.NewResolver(filepath.Join(t.TempDir(), "missing.csv"))

		Convey("Then every lookup degrades to the sentinel without panicking", func() {
			So(func() { r.Resolve(ctx, "ATL", "LAX") }, ShouldNotPanic)
			So(r.Resolve(ctx, "ATL", "LAX"), ShouldEqual, distance.Unknown)
		})
	})

	Convey("Given a resolver with an injected table", t, func() {
		tbl, err := distance.Parse(strings.NewReader(table))
		So(err, ShouldBeNil)
		r := distance.NewResolver("", distance.WithTable(tbl))

		So(r.Resolve(ctx, "JFK", "ORD"), ShouldEqual, 740)
	})
}
