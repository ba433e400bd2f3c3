package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/okian/puzzlerating/internal/adapters/wire"
	service "github.com/okian/puzzlerating/internal/app"
	"github.com/okian/puzzlerating/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func mustDecode(line string) rating.Metrics {
	m, err := wire.Decode(strings.NewReader(line))
	if err != nil {
		panic(err)
	}
	return m
}

func record(successRate, hints, attempts, diff float64, high, veryHigh int) string {
	return fmt.Sprintf(`{"successRate":%g,"avgHints":%g,"avgAttempts":%g,"avgRatingDiff":%g,"highRatedSuccesses":%d,"veryHighRatedSuccesses":%d}`,
		successRate, hints, attempts, diff, high, veryHigh)
}

func decodeLines(t *testing.T, out string) []wire.Line {
	t.Helper()
	var lines []wire.Line
	for _, raw := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		var l wire.Line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("bad result line %q: %v", raw, err)
		}
		lines = append(lines, l)
	}
	return lines
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestService_Batch(t *testing.T) {
	Convey("Given a service and a mixed batch", t, func() {
		svc := service.New()
		in := strings.Join([]string{
			record(10, 0, 3, 0, 0, 0),
			"",
			`{"successRate":`,
			record(90, 0, 1, 0, 0, 0),
			`{"successRate":10}`,
			"   ",
			record(120, 0, 1, 0, 0, 0),
		}, "\n")
		var out bytes.Buffer

		Convey("When the batch runs", func() {
			stats, err := svc.Batch(context.Background(), strings.NewReader(in), &out, service.BatchOptions{Workers: 3})
			lines := decodeLines(t, out.String())

			Convey("Then every non-blank line should be answered in order", func() {
				So(err, ShouldBeNil)
				So(stats.Records, ShouldEqual, 5)
				So(stats.OK, ShouldEqual, 2)
				So(stats.Failed, ShouldEqual, 3)
				So(lines, ShouldHaveLength, 5)

				So(*lines[0].RatingDelta, ShouldEqual, 1740)
				So(lines[1].Error.Code, ShouldEqual, wire.CodeParseError)
				So(lines[1].Error.Message, ShouldStartWith, "line 3:")
				So(*lines[2].RatingDelta, ShouldEqual, -60)
				So(lines[3].Error.Code, ShouldEqual, wire.CodeInvalidInput)
				So(lines[3].Error.Message, ShouldStartWith, "line 5:")
				So(lines[4].Error.Code, ShouldEqual, wire.CodeInvalidInput)
				So(lines[4].Error.Message, ShouldStartWith, "line 7:")
			})

			Convey("Then the service counters should reflect every record", func() {
				st := svc.GetStats()
				So(st["evaluations"], ShouldEqual, int64(2))
				So(st["rejected"], ShouldEqual, int64(3))
			})
		})
	})

	Convey("Given a large batch", t, func() {
		svc := service.New()
		var in strings.Builder
		const n = 500
		for i := 0; i < n; i++ {
			in.WriteString(record(float64(i%100), float64(i%3), 1+float64(i%4), float64(i%7)*10, i%5, i%2))
			in.WriteByte('\n')
		}
		var out bytes.Buffer

		Convey("When run with a small queue and many workers", func() {
			stats, err := svc.Batch(context.Background(), strings.NewReader(in.String()), &out,
				service.BatchOptions{Workers: 8, QueueCapacity: 4})
			lines := decodeLines(t, out.String())

			Convey("Then results should match sequential evaluation", func() {
				So(err, ShouldBeNil)
				So(stats.Records, ShouldEqual, n)
				So(lines, ShouldHaveLength, n)
				for i, l := range lines {
					want, _ := svc.Compute(context.Background(), mustDecode(record(float64(i%100), float64(i%3), 1+float64(i%4), float64(i%7)*10, i%5, i%2)))
					So(l.RatingDelta, ShouldNotBeNil)
					So(*l.RatingDelta, ShouldEqual, want)
				}
			})
		})
	})

	Convey("Given an empty input", t, func() {
		var out bytes.Buffer
		stats, err := service.New().Batch(context.Background(), strings.NewReader("\n\n"), &out, service.BatchOptions{})

		Convey("Then nothing should be written", func() {
			So(err, ShouldBeNil)
			So(stats.Records, ShouldEqual, 0)
			So(out.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a line longer than the scanner limit", t, func() {
		in := record(10, 0, 3, 0, 0, 0) + "\n" + strings.Repeat("x", 2<<20) + "\n"
		var out bytes.Buffer
		stats, err := service.New().Batch(context.Background(), strings.NewReader(in), &out, service.BatchOptions{Workers: 1})

		Convey("Then earlier records should be written and the read error returned", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "read line 2")
			So(stats.Records, ShouldEqual, 1)
		})
	})

	Convey("Given an output that cannot be written", t, func() {
		in := record(10, 0, 3, 0, 0, 0) + "\n" + record(90, 0, 1, 0, 0, 0)
		_, err := service.New().Batch(context.Background(), strings.NewReader(in), failingWriter{}, service.BatchOptions{Workers: 2})

		Convey("Then the write error should be returned", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disk full")
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var out bytes.Buffer
		_, err := service.New().Batch(ctx, strings.NewReader(record(10, 0, 3, 0, 0, 0)), &out, service.BatchOptions{Workers: 1})

		Convey("Then the batch should report cancellation", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
