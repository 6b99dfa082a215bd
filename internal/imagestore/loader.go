package imagestore

import (
	"context"
	"crypto/rand"
	"image"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/recall/internal/logger"
)

// Ticket identifies one Request. Tickets sort in issue order.
type Ticket string

// Result is the outcome of one decode request.
type Result struct {
	Slot   string
	Ticket Ticket
	Path   string
	Box    Size
	Raster *Raster
	Scaled image.Image
	Err    error
}

// Fitted returns the display size of the scaled image.
func (r Result) Fitted() Size {
	if r.Raster == nil {
		return Size{}
	}
	return Fit(r.Raster.Size, r.Box)
}

type slot struct {
	latest Ticket
	cancel context.CancelFunc
	box    chan Result
}

// Loader decodes images on background goroutines, one mailbox per view
// slot ("primary", "prev", "next"). A new Request for a slot cancels the
// one in flight, and only the result of the slot's latest request is ever
// delivered; stale completions are dropped.
type Loader struct {
	dec Decoder
	log logger.Logger

	mu      sync.Mutex
	slots   map[string]*slot
	entropy *ulid.MonotonicEntropy
	closed  bool
	wg      sync.WaitGroup
}

// NewLoader returns a Loader backed by dec.
func NewLoader(dec Decoder, log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{
		dec:     dec,
		log:     log,
		slots:   make(map[string]*slot),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Request starts decoding path for slot and returns its ticket. Any
// previous request for the slot is cancelled and any undelivered result
// for it is discarded.
func (l *Loader) Request(slotName, path string, box Size) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slotLocked(slotName)
	if s.cancel != nil {
		s.cancel()
	}
	drain(s.box)

	t := Ticket(ulid.MustNew(ulid.Timestamp(time.Now()), l.entropy).String())
	s.latest = t
	if l.closed {
		s.cancel = nil
		return t
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()

		res := Result{Slot: slotName, Ticket: t, Path: path, Box: box}
		res.Raster, res.Err = l.dec.Decode(ctx, path)
		if res.Err == nil {
			res.Scaled = Scale(res.Raster, box)
		}
		l.deliver(res)
	}()

	return t
}

// Results returns the mailbox for slot. It holds at most one Result.
func (l *Loader) Results(slotName string) <-chan Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slotLocked(slotName).box
}

// Latest returns the ticket of the slot's most recent request.
func (l *Loader) Latest(slotName string) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slotLocked(slotName).latest
}

// Await blocks until the result for ticket t arrives on slot or ctx ends.
// Results for other tickets are skipped.
func (l *Loader) Await(ctx context.Context, slotName string, t Ticket) (Result, error) {
	ch := l.Results(slotName)
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-ch:
			if res.Ticket == t {
				return res, nil
			}
		}
	}
}

// Close cancels all in-flight decodes and waits for their goroutines.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	for _, s := range l.slots {
		if s.cancel != nil {
			s.cancel()
		}
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loader) deliver(res Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slotLocked(res.Slot)
	if res.Ticket != s.latest {
		l.log.Debug("dropping stale image result",
			logger.String("slot", res.Slot),
			logger.String("ticket", string(res.Ticket)),
		)
		return
	}
	drain(s.box)
	s.box <- res
}

func (l *Loader) slotLocked(name string) *slot {
	s, ok := l.slots[name]
	if !ok {
		s = &slot{box: make(chan Result, 1)}
		l.slots[name] = s
	}
	return s
}

func drain(ch chan Result) {
	select {
	case <-ch:
	default:
	}
}
