package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/visualizer"
	"github.com/san-kum/qlab/internal/viz"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer plays one topic's animation straight to a terminal without
// the interactive app.
type LiveRenderer struct {
	out       io.Writer
	vis       *visualizer.Visualizer
	theme     viz.Theme
	frameRate int
	cols      int
	rows      int
	lastDigit string
}

func NewLiveRenderer(out io.Writer, theme viz.Theme, frameRate, cols, rows int) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 30
	}
	r := &LiveRenderer{
		out:       out,
		theme:     theme,
		frameRate: frameRate,
		cols:      cols,
		rows:      rows,
	}
	r.vis = visualizer.New(visualizer.OnMeasure(func(_ concept.ID, d string) { r.lastDigit = d }))
	return r
}

// Play draws topic until ctx is done or duration has passed. A measured
// play starts unmeasured and measures after half the duration.
func (r *LiveRenderer) Play(ctx context.Context, topic concept.ID, measured bool, duration time.Duration) error {
	defer r.vis.Close()

	fmt.Fprint(r.out, hideCursor)
	defer fmt.Fprint(r.out, showCursor)

	r.vis.Update(topic, false)
	ticker := time.NewTicker(time.Second / time.Duration(r.frameRate))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if duration > 0 && elapsed >= duration {
				return nil
			}
			if measured && !r.vis.Measured() && elapsed >= duration/2 {
				r.vis.Update(topic, true)
			}
			r.vis.Advance(now)
			if err := r.render(topic, elapsed); err != nil {
				return err
			}
		}
	}
}

func (r *LiveRenderer) render(topic concept.ID, elapsed time.Duration) error {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(r.theme.Styles().Gradient("量子通信实验室"))
	b.WriteString(fmt.Sprintf("  MODE: %s\n", strings.ToUpper(concept.Mode(topic))))
	b.WriteString(viz.Rasterize(r.vis.Surface(), r.cols, r.rows).Render(r.theme))

	status := fmt.Sprintf("t=%5.1fs", elapsed.Seconds())
	if r.vis.Measured() {
		status += "  measured"
		if r.lastDigit != "" {
			status += " → " + r.lastDigit
		}
		if topic == concept.QKD {
			status += fmt.Sprintf("  intercepts=%d", r.vis.Intercepts())
		}
	}
	b.WriteString(r.theme.Styles().Label.Render(status) + "\n")

	_, err := io.WriteString(r.out, b.String())
	return err
}
