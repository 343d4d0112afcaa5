package directory

import (
	"math"
	"sync"
	"time"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// FitOptions shape how a result set is framed on the map.
type FitOptions struct {
	MapWidth  float64 // viewport size in pixels
	MapHeight float64
	Padding   float64 // pixel padding kept around the fitted box
	MaxZoom   float64 // cap so one point never zooms in infinitely
}

// DefaultFitOptions matches the directory map pane.
func DefaultFitOptions() FitOptions {
	return FitOptions{MapWidth: 800, MapHeight: 600, Padding: 48, MaxZoom: 14}
}

// Degenerate bounding boxes (single point, coincident points) are widened
// by this much in mercator world units before the fit is computed.
const minBoxEpsilon = 1e-9

// FitToResults computes the viewport containing every point, padded and
// zoom-capped. It returns false when no point carries valid coordinates.
func FitToResults(points []types.GeoPoint, opts FitOptions) (types.Viewport, bool) {
	if len(points) == 0 {
		return types.Viewport{}, false
	}
	if opts.MapWidth <= 0 || opts.MapHeight <= 0 {
		d := DefaultFitOptions()
		opts.MapWidth, opts.MapHeight = d.MapWidth, d.MapHeight
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = DefaultFitOptions().MaxZoom
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	geo := types.Bounds{MinLng: math.Inf(1), MinLat: math.Inf(1), MaxLng: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, p := range points {
		x, y := mercator(p.Lng, p.Lat)
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
		geo.Extend(p.Lng, p.Lat)
	}

	// Enforce a minimum box so coincident points cannot divide by zero.
	dx := maxX - minX
	dy := maxY - minY
	if dx < minBoxEpsilon {
		pad := (minBoxEpsilon - dx) / 2
		minX -= pad
		maxX += pad
		dx = minBoxEpsilon
	}
	if dy < minBoxEpsilon {
		pad := (minBoxEpsilon - dy) / 2
		minY -= pad
		maxY += pad
		dy = minBoxEpsilon
	}

	innerW := math.Max(opts.MapWidth-2*opts.Padding, 1)
	innerH := math.Max(opts.MapHeight-2*opts.Padding, 1)
	// World is 512px at zoom 0; each zoom level doubles it.
	zoom := math.Min(
		math.Log2(innerW/(dx*512)),
		math.Log2(innerH/(dy*512)),
	)
	zoom = math.Min(zoom, opts.MaxZoom)
	zoom = math.Max(zoom, 0)

	centerLng, centerLat := unmercator((minX+maxX)/2, (minY+maxY)/2)
	return types.Viewport{
		CenterLng: centerLng,
		CenterLat: centerLat,
		Zoom:      zoom,
		Bounds:    geo,
	}, true
}

// ViewportAround frames the map on a center point at a fixed zoom, deriving
// the geographic bounds from the map's pixel dimensions.
func ViewportAround(lng, lat, zoom float64, opts FitOptions) types.Viewport {
	if opts.MapWidth <= 0 || opts.MapHeight <= 0 {
		d := DefaultFitOptions()
		opts.MapWidth, opts.MapHeight = d.MapWidth, d.MapHeight
	}
	cx, cy := mercator(lng, lat)
	scale := 512 * math.Exp2(zoom)
	halfW := opts.MapWidth / scale / 2
	halfH := opts.MapHeight / scale / 2
	// Mercator y grows southward, so the top edge is cy-halfH.
	minLng, maxLat := unmercator(cx-halfW, cy-halfH)
	maxLng, minLat := unmercator(cx+halfW, cy+halfH)
	return types.Viewport{
		CenterLng: lng,
		CenterLat: lat,
		Zoom:      zoom,
		Bounds:    types.Bounds{MinLng: minLng, MinLat: minLat, MaxLng: maxLng, MaxLat: maxLat}.Clamp(),
	}
}

func mercator(lng, lat float64) (x, y float64) {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	sin := math.Sin(lat * math.Pi / 180)
	x = lng/360 + 0.5
	y = 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	return x, y
}

func unmercator(x, y float64) (lng, lat float64) {
	lng = (x - 0.5) * 360
	lat = math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
	return lng, lat
}

// Debouncer coalesces bursts of calls into one trailing invocation. Move
// events fire per frame during a drag; marker recomputation only runs once
// the gesture settles.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, replacing any pending call.
// A non-positive delay runs fn synchronously.
func (d *Debouncer) Trigger(fn func()) {
	if d.delay <= 0 {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
