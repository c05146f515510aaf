package tui

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sagechat/sage/pkg/imageview"
	"github.com/sagechat/sage/pkg/session"
)

const imagePage = "image"

// openDiagram fetches a diagram and shows it in the viewer modal.
func (a *App) openDiagram(diagram *session.DiagramPart) {
	if diagram == nil {
		a.chat.appendNotice(noticeInfo, "No diagram to view yet.")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data, err := a.client.DiagramImage(ctx, diagram.ImageID)
		if err != nil {
			a.log.Error("fetching diagram image", "image_id", diagram.ImageID, "error", err)
			a.notify(noticeError, "Error loading diagram: "+err.Error())
			return
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			a.log.Error("decoding diagram image", "image_id", diagram.ImageID, "error", err)
			a.notify(noticeError, "Diagram image could not be decoded")
			return
		}

		a.queue(func() {
			a.openModal(imagePage, newImageModal(a, diagram.Caption, img))
		})
	}()
}

// imageModal shows one image with zoom and pan. The viewport does the
// geometry; the modal crops the source image to the visible region and
// hands it to tview's image widget.
type imageModal struct {
	*tview.Flex

	app      *App
	source   image.Image
	view     *tview.Image
	caption  *tview.TextView
	viewport *imageview.Viewport
}

func newImageModal(app *App, caption string, img image.Image) *imageModal {
	bounds := img.Bounds()
	m := &imageModal{
		Flex:   tview.NewFlex().SetDirection(tview.FlexRow),
		app:    app,
		source: img,
		view:   tview.NewImage(),
		// Container size in cells is only known at draw time; seed with
		// the image's own size and refit on the first draw.
		viewport: imageview.New(
			float64(bounds.Dx()), float64(bounds.Dy()),
			float64(bounds.Dx()), float64(bounds.Dy()),
		),
	}

	if caption == "" {
		caption = "Diagram"
	}
	m.caption = tview.NewTextView().
		SetDynamicColors(true).
		SetText(fmt.Sprintf("[yellow]%s[-]  +/- zoom  arrows pan  0 reset  esc close", tview.Escape(caption)))

	m.view.SetColors(tview.TrueColor)
	m.SetBorder(true)
	m.AddItem(m.caption, 1, 0, false)
	m.AddItem(m.view, 0, 1, true)

	m.SetInputCapture(m.handleKey)
	m.apply()
	return m
}

func (m *imageModal) handleKey(event *tcell.EventKey) *tcell.EventKey {
	cx := m.viewport.ContainerW / 2
	cy := m.viewport.ContainerH / 2
	panStep := m.viewport.ContainerW / 8

	switch {
	case event.Key() == tcell.KeyEscape:
		m.app.closeModal(imagePage)
		return nil
	case event.Rune() == '+' || event.Rune() == '=':
		m.viewport.Wheel(cx, cy, 2)
	case event.Rune() == '-':
		m.viewport.Wheel(cx, cy, -2)
	case event.Rune() == '0':
		m.viewport.Reset()
	case event.Rune() == 'z':
		m.viewport.ToggleZoom(cx, cy)
	case event.Key() == tcell.KeyLeft:
		m.pan(panStep, 0)
	case event.Key() == tcell.KeyRight:
		m.pan(-panStep, 0)
	case event.Key() == tcell.KeyUp:
		m.pan(0, panStep)
	case event.Key() == tcell.KeyDown:
		m.pan(0, -panStep)
	default:
		return event
	}

	m.apply()
	return nil
}

// pan nudges the viewport by a drag of (dx, dy).
func (m *imageModal) pan(dx, dy float64) {
	if !m.viewport.StartDrag(0, 0) {
		return
	}
	m.viewport.Drag(dx, dy)
	m.viewport.EndDrag()
}

// Draw keeps the viewport's container in sync with the widget size.
func (m *imageModal) Draw(screen tcell.Screen) {
	_, _, w, h := m.view.GetRect()
	if w > 0 && h > 0 {
		// Terminal cells are roughly twice as tall as wide; scale the
		// logical container so zoom geometry matches what is on screen.
		cw, ch := float64(w), float64(h*2)
		if cw != m.viewport.ContainerW || ch != m.viewport.ContainerH {
			m.viewport.Resize(cw, ch)
			m.apply()
		}
	}
	m.Flex.Draw(screen)
}

// apply crops the source to the visible region and updates the widget.
func (m *imageModal) apply() {
	visible := m.visibleRect()
	if visible.Empty() {
		m.view.SetImage(m.source)
		return
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := m.source.(subImager); ok {
		m.view.SetImage(s.SubImage(visible))
		return
	}
	m.view.SetImage(m.source)
}

// visibleRect maps the viewport's visible container area back to source
// image pixels.
func (m *imageModal) visibleRect() image.Rectangle {
	v := m.viewport
	if v.Scale <= 0 {
		return m.source.Bounds()
	}

	x0 := int((0 - v.OffsetX) / v.Scale)
	y0 := int((0 - v.OffsetY) / v.Scale)
	x1 := int((v.ContainerW - v.OffsetX) / v.Scale)
	y1 := int((v.ContainerH - v.OffsetY) / v.Scale)

	return image.Rect(x0, y0, x1, y1).Intersect(m.source.Bounds())
}
