package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/recall/internal/browser"
	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/ops"
)

// decodeTimeout bounds how long a view waits for its three images.
const decodeTimeout = 10 * time.Second

const browseHelp = `commands:
  n, <enter>          next capture
  p                   previous capture
  g N                 go to position N
  r START END         search a range ("YYYY-MM-DD HH:MM:SS" or milliseconds)
  a                   all captures with images
  q                   quit`

// session is one interactive browse over a Browser. Images for the three
// slots are decoded by a Loader so a fast sequence of moves only waits for
// the latest view.
type session struct {
	v      *ops.Viewer
	b      *browser.Browser
	loader *imagestore.Loader
	out    io.Writer
	log    logger.Logger
}

func newSession(ctx context.Context, v *ops.Viewer, rng ops.RangeInput, out io.Writer, log logger.Logger) (*session, error) {
	b, _, err := ops.Load(ctx, v, rng)
	if err != nil {
		return nil, err
	}
	return &session{
		v:      v,
		b:      b,
		loader: imagestore.NewLoader(imagestore.FileDecoder{}, log),
		out:    out,
		log:    log,
	}, nil
}

// Close stops any in-flight decodes.
func (s *session) Close() {
	s.loader.Close()
}

// Run renders the current view and then executes one command per input
// line until "q" or EOF.
func (s *session) Run(ctx context.Context, in io.Reader) error {
	s.render(ctx)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			rErr := errors.As(err)
			fmt.Fprintf(s.out, "[%s] %s\n", rErr.Code, rErr.Message)
			continue
		}
		if quit {
			return nil
		}
	}
}

// exec applies one command. Failed searches keep the previous result set.
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := "n"
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}

	switch cmd {
	case "q", "quit", "exit":
		return true, nil
	case "n", "next":
		if !s.b.Advance() {
			return false, errors.NewInvalidRequest(ops.PlaceholderLast)
		}
	case "p", "prev":
		if !s.b.Retreat() {
			return false, errors.NewInvalidRequest(ops.PlaceholderFirst)
		}
	case "g", "go":
		if len(fields) != 2 {
			return false, errors.NewInvalidRequest("usage: g N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || !s.b.Seek(n) {
			return false, errors.NewInvalidRequest(fmt.Sprintf("position %s out of range (0..%d)", fields[1], s.b.Len()-1))
		}
	case "r", "range":
		rng, err := parseRangeArgs(fields[1:])
		if err != nil {
			return false, err
		}
		tr, err := s.v.ResolveRange(rng)
		if err != nil {
			return false, err
		}
		if err := s.b.Search(ctx, tr.StartMs, tr.EndMs); err != nil {
			return false, err
		}
	case "a", "all":
		if err := s.b.LoadInitial(ctx); err != nil {
			return false, err
		}
	case "?", "h", "help":
		fmt.Fprintln(s.out, browseHelp)
		return false, nil
	default:
		return false, errors.NewInvalidRequest(fmt.Sprintf("unknown command %q (? for help)", cmd))
	}

	s.render(ctx)
	return false, nil
}

// parseRangeArgs accepts two millisecond values or two
// "YYYY-MM-DD HH:MM:SS" timestamps (four fields).
func parseRangeArgs(args []string) (ops.RangeInput, error) {
	switch len(args) {
	case 2:
		start, err1 := strconv.ParseInt(args[0], 10, 64)
		end, err2 := strconv.ParseInt(args[1], 10, 64)
		if err1 != nil || err2 != nil {
			return ops.RangeInput{}, errors.NewInvalidRequest("range bounds must be milliseconds or full timestamps")
		}
		return ops.RangeInput{StartMs: &start, EndMs: &end}, nil
	case 4:
		return ops.RangeInput{Start: args[0] + " " + args[1], End: args[2] + " " + args[3]}, nil
	default:
		return ops.RangeInput{}, errors.NewInvalidRequest("usage: r START END")
	}
}

func (s *session) render(ctx context.Context) {
	view := s.v.View(s.b)
	if view.Empty {
		fmt.Fprintln(s.out, view.Message)
		return
	}

	type slotFrame struct {
		name  string
		frame *ops.Frame
		label string
	}
	slots := []slotFrame{
		{"primary", view.Current, ""},
		{"previous", view.Previous, view.PreviousPlaceholder},
		{"next", view.Next, view.NextPlaceholder},
	}

	tickets := make(map[string]imagestore.Ticket, len(slots))
	for _, sl := range slots {
		if sl.frame == nil || sl.frame.Placeholder != "" {
			continue
		}
		box := imagestore.BoxPreview
		if sl.name == "primary" {
			box = imagestore.BoxPrimary
		}
		tickets[sl.name] = s.loader.Request(sl.name, sl.frame.ImagePath, box)
	}

	cur := view.Current
	fmt.Fprintf(s.out, "[%d/%d] #%d  %s  %s\n", view.Position+1, view.Total, cur.ID, cur.Time, oneLine(cur.WindowTitle))

	waitCtx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()
	for _, sl := range slots {
		fmt.Fprintf(s.out, "  %-9s %s\n", sl.name+":", s.describe(waitCtx, sl.name, sl.frame, sl.label, tickets))
	}
	if cur.OCRText != "" {
		fmt.Fprintf(s.out, "  ocr:      %s\n", oneLine(cur.OCRText))
	}
}

// describe waits for the slot's decode and renders one status line.
func (s *session) describe(ctx context.Context, slot string, f *ops.Frame, label string, tickets map[string]imagestore.Ticket) string {
	if f == nil {
		return label
	}
	prefix := ""
	if slot != "primary" {
		prefix = fmt.Sprintf("#%d %s ", f.ID, f.Time)
	}
	t, ok := tickets[slot]
	if !ok {
		return prefix + f.Placeholder
	}

	res, err := s.loader.Await(ctx, slot, t)
	if err != nil {
		return prefix + ops.PlaceholderUnloaded
	}
	if res.Err != nil {
		s.log.Debug("image decode failed", logger.String("slot", slot), logger.Error(res.Err))
		return prefix + ops.PlaceholderUnloaded
	}
	return fmt.Sprintf("%s%s %s -> %s", prefix, res.Raster.Format, res.Raster.Size, res.Fitted())
}
