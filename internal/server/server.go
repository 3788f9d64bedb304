// Package server is the provisioning HTTP server. It handles one connection
// at a time: parse the request, apply any posted bitmap or label fields, and
// answer with the configuration page.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/leejongyoung/Cargotchi/internal/bitmap"
	"github.com/leejongyoung/Cargotchi/internal/config"
	"github.com/leejongyoung/Cargotchi/internal/form"
	"github.com/leejongyoung/Cargotchi/internal/page"
	"github.com/leejongyoung/Cargotchi/internal/panel"
	"github.com/leejongyoung/Cargotchi/internal/wire"
)

// responseHeader precedes every page. No other status is ever sent.
const responseHeader = "HTTP/1.0 200 OK\r\nContent-type: text/html\r\n\r\n"

// maxLinger bounds the unread request bytes discarded after a rejected
// request before the connection is closed.
const maxLinger = 64 << 10

var (
	errDisplay = errors.New("server: display update failed")
	errStore   = errors.New("server: label store failed")
)

// LabelStore loads and saves the label fields. *config.Store implements it.
type LabelStore interface {
	Load() config.Label
	Save(config.Label) error
}

// Options configures a Server.
type Options struct {
	Limits      wire.Limits
	ReadTimeout time.Duration // idle time allowed between reads

	// Visible panel area painted from posted bitmaps.
	Geometry bitmap.Geometry
	// Rows of the browser canvas, at least Geometry.Height.
	SourceHeight int

	Panel   panel.Panel
	Store   LabelStore
	Metrics *Metrics // optional
	Logger  zerolog.Logger

	// AcceptBackoff is the pause after a failed Accept (default: 100ms).
	AcceptBackoff time.Duration
}

// Server owns one set of per-request buffers, reused for every connection.
// It is not safe for concurrent use; Serve handles connections sequentially.
type Server struct {
	opts Options
	log  zerolog.Logger

	reader     *wire.ByteReader
	parser     *wire.Parser
	transcoder *bitmap.Transcoder
	writer     *bufio.Writer

	state State
	// linger is set when the request was rejected with input still unread.
	linger bool
}

// New returns a Server for opts.
func New(opts Options) (*Server, error) {
	if opts.Panel == nil {
		return nil, errors.New("server: panel is required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Limits.MaxHeaderBytes <= 0 || opts.Limits.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("server: invalid limits %+v", opts.Limits)
	}
	if opts.SourceHeight < opts.Geometry.Height {
		opts.SourceHeight = opts.Geometry.Height
	}
	if opts.AcceptBackoff <= 0 {
		opts.AcceptBackoff = 100 * time.Millisecond
	}
	return &Server{
		opts:       opts,
		log:        opts.Logger,
		reader:     wire.NewByteReader(512, opts.ReadTimeout),
		parser:     wire.NewParser(opts.Limits),
		transcoder: bitmap.NewTranscoder(opts.Geometry),
		writer:     bufio.NewWriterSize(io.Discard, 1024),
	}, nil
}

// Serve accepts and handles connections from ln until ctx is cancelled,
// then closes ln and returns nil. It returns the Accept error if ln is
// closed by someone else.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("provisioning server listening")
	for {
		s.state = StateListening
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("provisioning server stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn().Err(err).Msg("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.opts.AcceptBackoff):
			}
			continue
		}
		s.handle(conn)
	}
}

// HighWater returns the bytes retained by the per-request buffers between
// connections.
func (s *Server) HighWater() int {
	return s.reader.Size() + s.parser.HighWater() + s.transcoder.HighWater() + s.writer.Size()
}

// handle runs one connection to completion. The connection and buffers are
// released on every path.
func (s *Server) handle(conn net.Conn) {
	s.state = StateAccepted
	log := s.log.With().Str("remote", remoteAddr(conn)).Logger()
	defer s.close(conn, log)

	saved, ok := s.process(conn, log)
	if !ok {
		s.opts.Metrics.connection(outcomeDropped)
		return
	}
	if err := s.respond(conn, saved); err != nil {
		log.Debug().Err(err).Msg("response not delivered")
	}
	if saved {
		s.opts.Metrics.connection(outcomeSaved)
	} else {
		s.opts.Metrics.connection(outcomeUnchanged)
	}
}

// process reads the request and applies it. ok is false when the
// connection must be closed without a response.
func (s *Server) process(conn net.Conn, log zerolog.Logger) (saved, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("state", s.state.String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("request handler panicked")
			s.opts.Metrics.failure("panic")
			saved, ok = false, true
		}
	}()

	s.reader.Reset(conn)
	req, err := s.parser.Parse(s.reader)
	switch {
	case err == nil:
	case errors.Is(err, wire.ErrReadTimeout):
		log.Debug().Err(err).Msg("read timeout, closing")
		s.opts.Metrics.failure(reason(err))
		return false, false
	case errors.Is(err, wire.ErrHeaderTooLarge), errors.Is(err, wire.ErrBodyTooLarge):
		log.Warn().Err(err).Msg("request rejected")
		s.opts.Metrics.failure(reason(err))
		s.linger = true
		return false, true
	default:
		log.Warn().Err(err).Msg("read failed, closing")
		s.opts.Metrics.failure(reason(err))
		return false, false
	}

	s.state = StateHeadersRead
	s.opts.Metrics.request(req.Method)
	log = log.With().Str("method", req.Method.String()).Logger()
	if req.Length.Source == wire.LengthInvalid {
		log.Debug().Msg("unparseable content-length, body skipped")
	}
	if req.Method != wire.MethodPost || len(req.Body) == 0 {
		return false, true
	}
	s.state = StateBodyRead

	if err := s.apply(req.Body, log); err != nil {
		log.Warn().Err(err).Msg("update not applied")
		s.opts.Metrics.failure(reason(err))
		return false, true
	}
	return true, true
}

// apply decodes the form body and applies its image and label fields. It
// fails when neither is present or any present one cannot be applied.
func (s *Server) apply(body []byte, log zerolog.Logger) error {
	text, err := form.DecodeBody(body)
	if err != nil {
		return err
	}
	hexData, imgErr := form.Extract(text, form.ImageDataMarker)
	hasImage := !errors.Is(imgErr, form.ErrMarkerNotFound)

	// A label field that fails to decode never blocks the image.
	fields, err := form.Select(text, "phone", "message")
	if err != nil {
		if !hasImage {
			return err
		}
		log.Warn().Err(err).Msg("label fields ignored")
		fields = nil
	}
	s.state = StateFormDecoded

	if !hasImage && len(fields) == 0 {
		return imgErr
	}

	if hasImage {
		if imgErr != nil {
			return imgErr
		}
		if err := s.render(hexData); err != nil {
			return err
		}
		log.Info().Int("hex_bytes", len(hexData)).Msg("display updated")
	}
	if len(fields) > 0 {
		if err := s.saveLabel(fields); err != nil {
			return err
		}
	}
	return nil
}

// render paints hexData onto a fresh frame and presents it.
func (s *Server) render(hexData string) error {
	fb := panel.NewFrame(s.opts.Panel)
	if err := s.transcoder.Transcode(hexData, fb); err != nil {
		return err
	}
	if err := panel.Present(s.opts.Panel, fb); err != nil {
		return fmt.Errorf("%w: %w", errDisplay, err)
	}
	return nil
}

func (s *Server) saveLabel(fields form.Fields) error {
	label := s.opts.Store.Load()
	if v, ok := fields.Get("phone"); ok {
		label.Phone = v
	}
	if v, ok := fields.Get("message"); ok {
		label.Message = v
	}
	if err := s.opts.Store.Save(label); err != nil {
		return fmt.Errorf("%w: %w", errStore, err)
	}
	return nil
}

// respond writes the fixed header and the page.
func (s *Server) respond(conn net.Conn, saved bool) error {
	s.state = StateResponding
	if s.opts.ReadTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.ReadTimeout))
	}

	label := s.opts.Store.Load()
	s.writer.Reset(conn)
	if _, err := s.writer.WriteString(responseHeader); err != nil {
		return err
	}
	err := page.Render(s.writer, page.Data{
		Saved:   saved,
		Phone:   label.Phone,
		Message: label.Message,
		Width:   s.opts.Geometry.Width,
		Height:  s.opts.SourceHeight,
	})
	if err != nil {
		return err
	}
	return s.writer.Flush()
}

// close tears the connection down and drops every reference to request
// data before the next Accept.
func (s *Server) close(conn net.Conn, log zerolog.Logger) {
	if s.linger {
		s.drain(conn, log)
		s.linger = false
	}
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("close connection")
	}
	s.parser.Release()
	s.transcoder.Release()
	s.reader.Reset(nil)
	s.writer.Reset(io.Discard)
	s.state = StateClosed
	s.opts.Metrics.setRetained(s.HighWater())
}

// drain half-closes conn and discards what the client is still sending, so
// that closing with unread input does not reset the connection and lose the
// response in flight. Connections without CloseWrite are closed as is.
func (s *Server) drain(conn net.Conn, log zerolog.Logger) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		log.Debug().Err(err).Msg("half-close connection")
		return
	}
	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		return
	}
	n, err := io.CopyN(io.Discard, conn, maxLinger)
	log.Debug().Err(err).Int64("bytes", n).Msg("drained rejected request")
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
