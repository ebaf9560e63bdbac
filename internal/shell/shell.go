package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"

	"poemd/internal/session"
	"poemd/pkg/types"
)

// progressUnits is the resolution of the download bar.
const progressUnits = 1000

// Options configures a Shell.
type Options struct {
	// Out receives the poem (default os.Stdout).
	Out io.Writer
	// Err receives status lines, the download bar and throughput (default os.Stderr).
	Err io.Writer
	// View is raw (streamed as it grows) or rendered (printed once at the end).
	View string
	// ResponseOnly prints nothing but the final response text.
	ResponseOnly bool
	// Renderer styles rendered output; defaults to one detected from Out.
	Renderer *lipgloss.Renderer
}

// Shell prints session events to a terminal.
type Shell struct {
	out          io.Writer
	err          io.Writer
	view         string
	responseOnly bool
	renderer     *lipgloss.Renderer
	faint        lipgloss.Style

	bar        *progressbar.ProgressBar
	lastStatus string
	printed    string
}

// New constructs a Shell.
func New(opts Options) *Shell {
	s := &Shell{out: opts.Out, err: opts.Err, view: opts.View, responseOnly: opts.ResponseOnly, renderer: opts.Renderer}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.err == nil {
		s.err = os.Stderr
	}
	if s.view == "" {
		s.view = types.ViewRaw
	}
	if s.renderer == nil {
		s.renderer = lipgloss.NewRenderer(s.out, termenv.WithColorCache(true))
	}
	s.faint = s.renderer.NewStyle().Faint(true)
	return s
}

// Run consumes events until the generation genID is done (any generation when
// genID is empty) and returns the final state. It also returns when events is
// closed or ctx is done.
func (s *Shell) Run(ctx context.Context, events <-chan session.Event, genID string) (session.State, error) {
	var last session.State
	for {
		select {
		case <-ctx.Done():
			s.finishBar()
			return last, ctx.Err()
		case e, ok := <-events:
			if !ok {
				s.finishBar()
				return last, fmt.Errorf("shell: event stream closed")
			}
			last = e.State
			if genID != "" && e.GenerationID != "" && e.GenerationID != genID {
				continue
			}
			if s.handle(e) && (genID == "" || e.GenerationID == genID) {
				return last, nil
			}
		}
	}
}

// Follow prints load events until done delivers the result of a prefetch.
func (s *Shell) Follow(ctx context.Context, events <-chan session.Event, done <-chan error) error {
	defer s.finishBar()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			s.drain(events)
			return err
		case e, ok := <-events:
			if !ok {
				return <-done
			}
			s.handle(e)
		}
	}
}

func (s *Shell) drain(events <-chan session.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			s.handle(e)
		default:
			return
		}
	}
}

// handle prints one event and reports whether it ends a generation.
func (s *Shell) handle(e session.Event) bool {
	switch e.Name {
	case session.EventStatus:
		if e.State.Status != s.lastStatus && !strings.HasPrefix(e.State.Status, "Downloading") {
			s.status(e.State.Status)
		}
		s.lastStatus = e.State.Status
	case session.EventDownloadProgress:
		s.progress(e.Fields)
	case session.EventLoaded:
		s.finishBar()
		s.status(e.State.Status)
		s.lastStatus = e.State.Status
	case session.EventOutput:
		if s.view == types.ViewRaw && !s.responseOnly {
			s.stream(e.State.Output)
		}
	case session.EventDone:
		s.finish(e.State)
		return true
	}
	return false
}

func (s *Shell) status(line string) {
	if s.responseOnly || line == "" {
		return
	}
	fmt.Fprintln(s.err, s.faint.Render(line))
}

// stream prints what was added to the output since the last event.
func (s *Shell) stream(text string) {
	switch {
	case strings.HasPrefix(text, s.printed):
		fmt.Fprint(s.out, text[len(s.printed):])
	case text == "":
		// cleared for a new generation
	default:
		fmt.Fprint(s.out, "\n"+text)
	}
	s.printed = text
}

func (s *Shell) finish(st session.State) {
	switch {
	case s.responseOnly:
		fmt.Fprintln(s.out, st.Output)
	case s.view == types.ViewRendered:
		fmt.Fprintln(s.out, Render(s.renderer, st.Output, s.view))
	default:
		s.stream(st.Output)
		fmt.Fprintln(s.out)
	}
	if !s.responseOnly && st.Throughput != "" {
		fmt.Fprintln(s.err, s.faint.Render(strings.TrimSpace(st.Throughput)))
	}
	s.printed = ""
}

func (s *Shell) progress(fields map[string]any) {
	if s.responseOnly {
		return
	}
	frac, _ := fields["fraction"].(float64)
	file, _ := fields["file"].(string)
	if s.bar == nil {
		s.bar = progressbar.NewOptions(progressUnits,
			progressbar.OptionSetWriter(s.err),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetPredictTime(false),
		)
	}
	desc := file
	completed, _ := fields["completed"].(int64)
	total, _ := fields["total"].(int64)
	if total > 0 {
		desc = fmt.Sprintf("%s %s/%s", file, humanize.Bytes(uint64(completed)), humanize.Bytes(uint64(total)))
	} else if completed > 0 {
		desc = fmt.Sprintf("%s %s", file, humanize.Bytes(uint64(completed)))
	}
	s.bar.Describe(desc)
	_ = s.bar.Set(int(frac * progressUnits))
}

func (s *Shell) finishBar() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	fmt.Fprintln(s.err)
	s.bar = nil
}
