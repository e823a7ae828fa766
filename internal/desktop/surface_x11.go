//go:build linux

package desktop

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
)

// x11Surface captures the X11 root window. Each Xinerama screen is one
// display and one capture source; without Xinerama the root window is the
// only source.
type x11Surface struct{}

func newPlatformSurface() Surface { return x11Surface{} }

type x11Session struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
}

// open connects to $DISPLAY. A fresh connection per call keeps hot-plugged
// topology changes visible.
func (x11Surface) open(ctx context.Context) (*x11Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	return &x11Session{conn: conn, screen: xproto.Setup(conn).DefaultScreen(conn)}, nil
}

func (s *x11Session) close() { s.conn.Close() }

func (s *x11Session) rootRect() image.Rectangle {
	return image.Rect(0, 0, int(s.screen.WidthInPixels), int(s.screen.HeightInPixels))
}

func (s *x11Session) screenRects() []image.Rectangle {
	if err := xinerama.Init(s.conn); err == nil {
		reply, err := xinerama.QueryScreens(s.conn).Reply()
		if err == nil && len(reply.ScreenInfo) > 0 {
			rects := make([]image.Rectangle, 0, len(reply.ScreenInfo))
			for _, si := range reply.ScreenInfo {
				x, y := int(si.XOrg), int(si.YOrg)
				rects = append(rects, image.Rect(x, y, x+int(si.Width), y+int(si.Height)))
			}
			return rects
		}
	}
	return []image.Rectangle{s.rootRect()}
}

func (s *x11Session) grab(r image.Rectangle) (*image.RGBA, error) {
	r = r.Intersect(s.rootRect())
	if r.Empty() {
		return nil, fmt.Errorf("capture region outside root window")
	}

	reply, err := xproto.GetImage(s.conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.screen.Root),
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()), 0xffffffff).Reply()
	if err != nil {
		return nil, fmt.Errorf("GetImage: %w", err)
	}

	w, h := r.Dx(), r.Dy()
	if len(reply.Data) < w*h*4 {
		return nil, fmt.Errorf("unsupported pixel format (depth %d)", reply.Depth)
	}

	// ZPixmap at depth 24/32 is BGRX, one pixel per 4 bytes.
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		src := reply.Data[i*4 : i*4+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xff
	}
	return img, nil
}

func (x x11Surface) Displays(ctx context.Context) ([]Display, error) {
	sess, err := x.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	rects := sess.screenRects()
	displays := make([]Display, 0, len(rects))
	for i, r := range rects {
		displays = append(displays, Display{
			Index:   i,
			ID:      strconv.Itoa(i),
			Name:    fmt.Sprintf("Display %d (%dx%d)", i+1, r.Dx(), r.Dy()),
			Width:   r.Dx(),
			Height:  r.Dy(),
			X:       r.Min.X,
			Y:       r.Min.Y,
			Primary: i == 0,
		})
	}
	return displays, nil
}

func (x x11Surface) Sources(ctx context.Context) ([]Source, error) {
	sess, err := x.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	rects := sess.screenRects()
	sources := make([]Source, 0, len(rects))
	for i, r := range rects {
		sources = append(sources, Source{
			ID:        fmt.Sprintf("screen:%d:0", i),
			Name:      fmt.Sprintf("Screen %d", i+1),
			DisplayID: strconv.Itoa(i),
			Bounds:    r,
		})
	}
	return sources, nil
}

func (x x11Surface) Grab(ctx context.Context, src Source) (image.Image, error) {
	sess, err := x.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()
	return sess.grab(src.Bounds)
}

func (x x11Surface) GrabDesktop(ctx context.Context) (image.Image, error) {
	sess, err := x.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()
	return sess.grab(sess.rootRect())
}
