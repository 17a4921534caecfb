package source

import (
	"context"
	"math"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/protocol"
)

// Demo draws a circle stroke over and over, standing in for a pen on the
// tablet surface.
type Demo struct {
	CenterX, CenterY float32
	Radius           float32
	Points           int           // motion events per stroke
	Interval         time.Duration // between motion events
	Pause            time.Duration // between strokes
	Strokes          int           // 0 means until ctx is done
}

// NewDemo returns a demo with a centered circle at roughly 120 events/s.
func NewDemo() *Demo {
	return &Demo{
		CenterX:  0.5,
		CenterY:  0.5,
		Radius:   0.25,
		Points:   120,
		Interval: 8 * time.Millisecond,
		Pause:    500 * time.Millisecond,
	}
}

func (d *Demo) Name() string { return NameDemo }

// Run emits pen down, one motion per point around the circle and pen up for
// each stroke. Pressure swells towards the middle of the stroke.
func (d *Demo) Run(ctx context.Context, sink Sink) error {
	points := d.Points
	if points < 2 {
		points = 2
	}

	for stroke := 0; d.Strokes == 0 || stroke < d.Strokes; stroke++ {
		logger.Debug("Demo stroke", "n", stroke+1)

		sink.Enqueue(protocol.Button{ID: 0, Pressed: true})
		for i := 0; i <= points; i++ {
			sink.Enqueue(d.point(i, points))
			if err := sleep(ctx, d.Interval); err != nil {
				// lift the pen so the receiver is not left pressed
				sink.Enqueue(protocol.Button{ID: 0, Pressed: false})
				return err
			}
		}
		sink.Enqueue(protocol.Button{ID: 0, Pressed: false})

		if err := sleep(ctx, d.Pause); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demo) point(i, points int) protocol.Motion {
	t := float64(i) / float64(points)
	angle := 2 * math.Pi * t
	m := protocol.Motion{
		X:        d.CenterX + d.Radius*float32(math.Cos(angle)),
		Y:        d.CenterY + d.Radius*float32(math.Sin(angle)),
		Pressure: float32(math.Sin(math.Pi * t)),
	}
	return m.Clamp()
}
