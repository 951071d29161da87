package video

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/utils"
)

//Dispatcher accepts crossing events without blocking
type Dispatcher interface {
	Dispatch(ev crossing.Event) bool
}

//ProcessorOptions tunes the processor. The zero value keeps the defaults
type ProcessorOptions struct {
	ConfidenceThreshold float64 //detections at or below it are ignored, 0 means utils.ConfidenceThreshold
	MaxIdleFrames       uint64  //forget tracks unseen for this many frames, 0 never forgets
}

//ProcessorStats counts what the processor has seen since it was created
type ProcessorStats struct {
	Frames       uint64 `json:"frames"`
	Detections   uint64 `json:"detections"`
	Filtered     uint64 `json:"filtered"`
	Unresolved   uint64 `json:"unresolved"`
	CrossingsIn  uint64 `json:"crossings_in"`
	CrossingsOut uint64 `json:"crossings_out"`
	Tracks       int64  `json:"tracks"`
}

//Processor turns tracker frames into crossing events. Process and Run must be called from a single goroutine;
//Stats and LastFrame are safe to call from anywhere
type Processor struct {
	boundary   crossing.Boundary
	labels     utils.Labels
	history    *crossing.History
	dispatcher Dispatcher
	opts       ProcessorOptions

	frames       atomic.Uint64
	detections   atomic.Uint64
	filtered     atomic.Uint64
	unresolved   atomic.Uint64
	crossingsIn  atomic.Uint64
	crossingsOut atomic.Uint64
	tracks       atomic.Int64

	lastMu sync.RWMutex
	last   FrameResult
}

func NewProcessor(boundary crossing.Boundary, labels utils.Labels, dispatcher Dispatcher, opts ProcessorOptions) *Processor {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = utils.ConfidenceThreshold
	}

	return &Processor{
		boundary:   boundary,
		labels:     labels,
		history:    crossing.NewHistory(),
		dispatcher: dispatcher,
		opts:       opts,
	}
}

//Run processes frames until framesC is closed (the tracker stopped) or ctx is cancelled
func (p *Processor) Run(ctx context.Context, framesC <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-framesC:
			if !ok { //sender closed chan
				return nil
			}
			p.Process(frame)
		}
	}
}

//Process handles one frame: filters noise, updates the track history and dispatches every crossing.
//A track id that appears more than once in the same frame is only considered the first time
func (p *Processor) Process(frame Frame) FrameResult {
	p.frames.Add(1)
	p.history.Tick()

	result := FrameResult{Number: frame.Number, Observations: make([]Observation, 0, len(frame.Detections))}
	seen := make(map[int]bool, len(frame.Detections))

	for _, det := range frame.Detections {
		p.detections.Add(1)

		if det.Confidence <= p.opts.ConfidenceThreshold {
			p.filtered.Add(1)
			continue
		}

		if seen[det.TrackID] {
			continue
		}
		seen[det.TrackID] = true

		position := det.CenterY()
		previous, hasPrevious := p.history.Get(det.TrackID)

		obs := Observation{
			TrackID:    det.TrackID,
			Confidence: det.Confidence,
			Box:        [4]float64{det.Xmin, det.Ymin, det.Xmax, det.Ymax},
			Position:   position,
			Movement:   crossing.MovementOf(previous, hasPrevious, position),
		}

		if label, ok := p.labels.Lookup(det.Class); ok {
			obs.Label = label
			if dir, crossed := crossing.Classify(p.boundary, previous, hasPrevious, position); crossed {
				obs.Crossed = &dir
				p.countCrossing(dir)
				p.dispatcher.Dispatch(crossing.Event{TrackID: det.TrackID, Label: label, Direction: dir})
			}
		} else {
			p.unresolved.Add(1)
		}

		p.history.Set(det.TrackID, position)
		result.Observations = append(result.Observations, obs)
	}

	p.history.Evict(p.opts.MaxIdleFrames)
	p.tracks.Store(int64(p.history.Len()))

	p.lastMu.Lock()
	p.last = result
	p.lastMu.Unlock()

	return result
}

func (p *Processor) countCrossing(dir crossing.Direction) {
	switch dir {
	case crossing.Inward:
		p.crossingsIn.Add(1)
	case crossing.Outward:
		p.crossingsOut.Add(1)
	}
}

func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Frames:       p.frames.Load(),
		Detections:   p.detections.Load(),
		Filtered:     p.filtered.Load(),
		Unresolved:   p.unresolved.Load(),
		CrossingsIn:  p.crossingsIn.Load(),
		CrossingsOut: p.crossingsOut.Load(),
		Tracks:       p.tracks.Load(),
	}
}

//LastFrame returns the result of the most recently processed frame
func (p *Processor) LastFrame() FrameResult {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last
}

//Boundary is the y coordinate crossings are measured against
func (p *Processor) Boundary() crossing.Boundary {
	return p.boundary
}
