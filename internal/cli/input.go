// Package cli runs an interactive search prompt over one session, for debugging
// ranking in real-time.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/session"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
	"github.com/charmbracelet/log"
)

// InputHandler reads queries from stdin and prints ranked choices.
//
// Every line is a query, trailing spaces included. Lines starting with ':' are commands:
//
//	:resolve <input>         shortcode table lookup
//	:complete <kind> <text>  list table keys starting with text
//	:flags <input>           rank the flag corpus
//	:stats                   session counts
type InputHandler struct {
	sess       *session.Session
	limit      int
	showScores bool

	in  io.Reader
	out io.Writer

	requestCount int
}

// NewInputHandler creates a handler over sess printing at most limit rows per query.
func NewInputHandler(sess *session.Session, limit int, showScores bool) *InputHandler {
	return &InputHandler{
		sess:       sess,
		limit:      limit,
		showScores: showScores,
		in:         os.Stdin,
		out:        os.Stdout,
	}
}

// SetIO replaces stdin and stdout.
func (h *InputHandler) SetIO(in io.Reader, out io.Writer) {
	h.in, h.out = in, out
}

// Start begins the interface loop. It returns nil at the end of input.
func (h *InputHandler) Start() error {
	log.Print("ChoiceServe CLI [BETA]")
	log.Printf("%d choices loaded. type to search, :help for commands (Ctrl+C to exit):", h.sess.Len())
	reader := bufio.NewReader(h.in)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			h.handleInput(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// handleInput runs one line.
func (h *InputHandler) handleInput(line string) {
	h.requestCount++
	if cmd, ok := strings.CutPrefix(line, ":"); ok {
		h.handleCommand(cmd)
		return
	}

	start := time.Now()
	results := h.sess.Query(line, "cli")
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for input '%s'", elapsed, line)

	if len(results) == 0 {
		log.Warnf("No choices found for input: '%s'", line)
		return
	}
	h.print(results)
	fmt.Fprintln(h.out, dimStyle.Render(fmt.Sprintf("%d results in %v", len(results), elapsed.Round(time.Microsecond))))
}

func (h *InputHandler) handleCommand(cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")
	switch name {
	case "resolve":
		res, ok := h.sess.Resolve(arg)
		if !ok {
			log.Warnf("Nothing resolves '%s'", arg)
			return
		}
		fmt.Fprintf(h.out, "%s %s -> %s\n", res.Kind, res.Key, FormatChoice(res.Choice))

	case "complete":
		kind, prefix, _ := strings.Cut(arg, " ")
		keys := h.sess.Complete(shortcode.Kind(kind), prefix)
		if len(keys) == 0 {
			log.Warnf("No %s keys start with '%s'", kind, prefix)
			return
		}
		fmt.Fprintln(h.out, strings.Join(keys, "  "))

	case "flags":
		h.print(h.sess.QueryFlags(arg))

	case "stats":
		st := h.sess.Stats()
		fmt.Fprintf(h.out, "choices=%d flags=%d grouped=%v invalid=%d normalized=%d tables=%v\n",
			st.Choices, st.Flags, st.Grouped, st.InvalidPatterns, st.Normalized, st.Tables)

	case "help":
		fmt.Fprintln(h.out, ":resolve <input> | :complete <kind> <prefix> | :flags <input> | :stats")

	default:
		log.Errorf("Unknown command: %s", name)
	}
}

func (h *InputHandler) print(results []choice.ScoredChoice) {
	for i, sc := range results {
		if h.limit > 0 && i >= h.limit {
			fmt.Fprintln(h.out, dimStyle.Render(fmt.Sprintf("... %d more", len(results)-h.limit)))
			return
		}
		fmt.Fprintln(h.out, FormatResult(i+1, sc, h.showScores))
	}
}
