package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bastiangx/choiceserve/internal/logger"
	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/config"
	"github.com/bastiangx/choiceserve/pkg/session"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// palette is one named session and its query dispatcher.
type palette struct {
	sess *session.Session
	disp *Dispatcher
}

// Server handles the IPC for choice sessions
type Server struct {
	config     *config.Config
	configPath string

	dec *msgpack.Decoder

	wmu sync.Mutex
	w   *bufio.Writer
	enc *msgpack.Encoder

	// only touched by the read loop
	palettes map[string]*palette
	defaults *session.DefaultsCache

	log          *log.Logger
	requestCount int
}

// NewServer creates a server using stdin/stdout for IPC
func NewServer(cfg *config.Config, configPath string) *Server {
	return NewWithIO(cfg, configPath, os.Stdin, os.Stdout)
}

// NewWithIO creates a server reading requests from r and writing messages to w.
func NewWithIO(cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	enc.SetSortMapKeys(true)
	return &Server{
		config:     cfg,
		configPath: configPath,
		dec:        msgpack.NewDecoder(r),
		w:          bw,
		enc:        enc,
		palettes:   make(map[string]*palette),
		defaults:   session.NewDefaultsCache(),
		log:        logger.New("server"),
	}
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *log.Logger) {
	s.log = l
}

// Defaults returns the default view cache shared by every session.
func (s *Server) Defaults() *session.DefaultsCache {
	return s.defaults
}

// Start begins listening for IPC requests. It returns nil when the input ends.
func (s *Server) Start() error {
	s.log.Debug("Starting server", "config", s.configPath)
	s.send(Message{Channel: ChannelStatus, Data: "ready"})

	for {
		var raw msgpack.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			s.shutdown()
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.log.Errorf("Reading request: %v", err)
			return err
		}
		s.handleRequest(raw)
	}
}

// shutdown runs the pending query of every session, then stops the dispatchers.
func (s *Server) shutdown() {
	for name, p := range s.palettes {
		p.disp.Flush()
		p.disp.Stop()
		delete(s.palettes, name)
	}
	s.log.Debug("Server stopped", "requests", s.requestCount)
}

// handleRequest decodes and serves one request. A panic only fails that request.
func (s *Server) handleRequest(raw msgpack.RawMessage) {
	s.requestCount++
	var req Request

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Request panicked", "id", req.ID, "action", req.Action, "panic", r)
			s.sendError(req.ID, req.Session, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := msgpack.Unmarshal(raw, &req); err != nil {
		s.log.Errorf("Unmarshaling request: %v", err)
		s.sendError("", "", fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Session == "" {
		req.Session = DefaultSession
	}
	if err := s.dispatch(req); err != nil {
		s.sendError(req.ID, req.Session, err)
	}
}

func (s *Server) dispatch(req Request) error {
	start := time.Now()
	input := utils.TruncateRunes(req.Input, s.config.Server.MaxInput)

	switch req.Action {
	case ActionHealth:
		s.reply(req, start, ChannelStatus, "ok")

	case ActionSetChoices:
		p := s.palette(req.Session)
		s.warnIssues(req, req.Choices.Issues)
		p.sess.SetChoices(req.Choices.Choices, req.Options)
		s.reply(req, start, ChannelStatus, "ok")

	case ActionAppendChoices:
		p := s.palette(req.Session)
		s.warnIssues(req, req.Choices.Issues)
		p.sess.AppendChoices(req.Choices.Choices)
		s.reply(req, start, ChannelStatus, "ok")

	case ActionQuery:
		p := s.palette(req.Session)
		reason := req.Reason
		if reason == "" {
			reason = "input"
		}
		p.disp.Submit(p.sess.Len(), func() {
			p.sess.Query(input, reason)
		})

	case ActionSetFlags:
		if req.Flags == nil {
			return errors.New("set_flags: missing flags")
		}
		p := s.palette(req.Session)
		p.sess.SetFlags(*req.Flags)

	case ActionQueryFlags:
		s.palette(req.Session).sess.QueryFlags(input)

	case ActionResolve:
		p := s.palette(req.Session)
		out := Resolved{}
		if res, ok := p.sess.Resolve(input); ok {
			out = Resolved{Found: true, Kind: string(res.Kind), Key: res.Key, Choice: res.Choice}
		}
		s.reply(req, start, ChannelResolved, out)

	case ActionComplete:
		kind, err := parseKind(req.Kind)
		if err != nil {
			return err
		}
		keys := s.palette(req.Session).sess.Complete(kind, input)
		s.reply(req, start, ChannelCompletions, keys)

	case ActionStats:
		s.reply(req, start, ChannelStats, s.palette(req.Session).sess.Stats())

	case ActionClose:
		if p, ok := s.palettes[req.Session]; ok {
			p.disp.Stop()
			delete(s.palettes, req.Session)
		}
		s.reply(req, start, ChannelStatus, "closed")

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return nil
}

// palette returns the named session, creating it on first use.
func (s *Server) palette(name string) *palette {
	if p, ok := s.palettes[name]; ok {
		return p
	}

	l := logger.New("session")
	emit := session.EmitterFunc(func(ch session.Channel, payload any) {
		s.send(Message{Session: name, Channel: string(ch), Data: payload})
	})
	p := &palette{
		sess: session.New(session.Options{
			Name:               name,
			Search:             s.config.Search.FuzzyOptions(),
			Emitter:            emit,
			Logger:             l,
			AccumulateKeywords: s.config.Search.AccumulateKeywords,
			Defaults:           s.defaults,
		}),
		disp: NewDispatcher(DispatchOptions{
			ImmediateThreshold: s.config.Server.ImmediateThreshold,
			Interval:           s.config.Server.RateInterval(),
			Burst:              s.config.Server.RateBurst,
			Logger:             l,
		}),
	}
	s.palettes[name] = p
	s.log.Debug("Session created", "session", name)
	return p
}

func (s *Server) reply(req Request, start time.Time, channel string, data any) {
	s.send(Message{
		ID:        req.ID,
		Session:   req.Session,
		Channel:   channel,
		Data:      data,
		TimeTaken: time.Since(start).Microseconds(),
	})
}

// warnIssues logs choices that did not decode cleanly. The rest of the corpus is kept.
func (s *Server) warnIssues(req Request, issues []choice.DecodeIssue) {
	for _, is := range issues {
		if is.Dropped() {
			s.log.Warn("Dropped choice", "id", req.ID, "session", req.Session, "index", is.Index, "err", is.Err)
			continue
		}
		s.log.Warn("Zeroed choice fields", "id", req.ID, "session", req.Session, "index", is.Index, "choice", is.ID, "fields", is.Fields)
	}
}

// sendError sends an error message
func (s *Server) sendError(id, sess string, err error) {
	s.log.Debug("Request failed", "id", id, "err", err)
	s.send(Message{ID: id, Session: sess, Channel: ChannelError, Error: err.Error()})
}

// send encodes one message and flushes it. Safe for concurrent use.
func (s *Server) send(m Message) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.enc.Encode(m); err != nil {
		s.log.Errorf("Encoding %s message: %v", m.Channel, err)
		return
	}
	if err := s.w.Flush(); err != nil {
		s.log.Errorf("Writing %s message: %v", m.Channel, err)
	}
}

func parseKind(k string) (shortcode.Kind, error) {
	for _, kind := range shortcode.Kinds {
		if string(kind) == k {
			return kind, nil
		}
	}
	return "", fmt.Errorf("complete: unknown table %q", k)
}
