// Package monitor opens a desktop window that visualizes the scheduler
// ring while the simulated machine runs: one row per task, colored by
// state, with the current task marked.
package monitor

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"ember/emberos/kernel"
	"ember/internal/buildinfo"
)

const (
	viewWidth = 240
	rowHeight = 16
	minRows   = 4
)

var stateColors = map[kernel.StateKind]color.RGBA{
	kernel.StateEntry: {0xe0, 0xb0, 0x20, 0xff},
	kernel.StateWake:  {0x30, 0xa0, 0x40, 0xff},
	kernel.StateSleep: {0x50, 0x50, 0x58, 0xff},
	kernel.StateUser:  {0x20, 0x60, 0xc0, 0xff},
}

// Done tells the monitor the run is over; the window stays open showing
// the final ring state.
var Done = errors.New("monitor: run done")

// Run opens the monitor window and drives one scheduler quantum per
// frame via step. It blocks until the window closes or step fails;
// step returning Done ends the run cleanly.
func Run(ts *kernel.Tasks, step func() error) error {
	g := &game{ts: ts, step: step}
	ebiten.SetWindowTitle("embersim (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(viewWidth*3, rowHeight*12*3)
	ebiten.SetTPS(30)
	return ebiten.RunGame(g)
}

type game struct {
	ts   *kernel.Tasks
	step func() error

	img   *image.RGBA
	fbImg *ebiten.Image
	done  bool
}

func (g *game) Update() error {
	if g.done || g.step == nil {
		return nil
	}
	if err := g.step(); err != nil {
		if errors.Is(err, Done) {
			g.done = true
			return nil
		}
		return err
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	infos := g.ts.Snapshot()

	rows := len(infos)
	if rows < minRows {
		rows = minRows
	}
	h := rows * rowHeight
	if g.img == nil || g.img.Bounds().Dy() != h {
		g.img = image.NewRGBA(image.Rect(0, 0, viewWidth, h))
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(viewWidth, h)
	}

	for y := 0; y < h; y++ {
		row := y / rowHeight
		var c color.RGBA
		if row < len(infos) {
			c = stateColors[infos[row].State]
		} else {
			c = color.RGBA{0x10, 0x10, 0x14, 0xff}
		}
		for x := 0; x < viewWidth; x++ {
			j := (y*viewWidth + x) * 4
			g.img.Pix[j+0] = c.R
			g.img.Pix[j+1] = c.G
			g.img.Pix[j+2] = c.B
			g.img.Pix[j+3] = 0xff
		}
	}

	g.fbImg.ReplacePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)

	for i, info := range infos {
		marker := "  "
		if info.Current {
			marker = "> "
		}
		label := fmt.Sprintf("%stask %d  %s", marker, info.ID, info.State)
		ebitenutil.DebugPrintAt(screen, label, 4, i*rowHeight+2)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	rows := len(g.ts.Snapshot())
	if rows < minRows {
		rows = minRows
	}
	return viewWidth, rows * rowHeight
}
