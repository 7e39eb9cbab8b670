package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// humanClick moves the mouse toward el's center in a handful of jittered
// steps before clicking, rather than warping the cursor directly, for
// sites that gate interaction behind pointer-movement heuristics.
func humanClick(ctx context.Context, page *rod.Page, el *rod.Element) error {
	shape, err := el.Shape()
	if err != nil {
		return err
	}
	box := shape.Box()
	tx := box.X + box.Width/2
	ty := box.Y + box.Height/2

	mouse := page.Context(ctx).Mouse
	const steps = 6
	for i := 1; i <= steps; i++ {
		frac := float64(i) / steps
		jx := tx*frac + jitter(3)
		jy := ty*frac + jitter(3)
		if err := mouse.MoveTo(proto.NewPoint(jx, jy)); err != nil {
			return err
		}
		time.Sleep(time.Duration(15+rand.Intn(25)) * time.Millisecond)
	}
	if err := mouse.MoveTo(proto.NewPoint(tx, ty)); err != nil {
		return err
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	return mouse.Up(proto.InputMouseButtonLeft, 1)
}

// humanType focuses el, clears it with a select-all/backspace pair, then
// types text one character at a time with small randomized pauses before
// pressing Enter, the fallback path for inputs whose JS handlers ignore
// the synthetic value set by a direct Input() call.
func humanType(ctx context.Context, page *rod.Page, el *rod.Element, text string) error {
	if err := el.Focus(); err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	kb := page.Context(ctx).Keyboard
	if err := kb.Type(input.Backspace); err != nil {
		return err
	}

	for _, r := range text {
		if err := kb.Type(input.Key(r)); err != nil {
			return err
		}
		time.Sleep(time.Duration(25+rand.Intn(60)) * time.Millisecond)
	}
	time.Sleep(time.Duration(100+rand.Intn(150)) * time.Millisecond)
	return kb.Type(input.Enter)
}

func jitter(spread float64) float64 {
	return (rand.Float64()*2 - 1) * spread
}
