package wire

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Method is the request method. Only POST enables body reading.
type Method int

const (
	MethodOther Method = iota
	MethodGet
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return "OTHER"
	}
}

func parseMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	default:
		return MethodOther
	}
}

// Header is a single header line in arrival order.
type Header struct {
	Name  string
	Value string
}

// LengthSource records how ContentLength.N was obtained.
type LengthSource int

const (
	// LengthAbsent: no Content-Length header, N is 0.
	LengthAbsent LengthSource = iota
	// LengthDeclared: a well-formed non-negative value was sent.
	LengthDeclared
	// LengthInvalid: only unparseable or negative values were sent and N
	// defaults to 0, so the body is skipped and the request still succeeds.
	LengthInvalid
)

func (s LengthSource) String() string {
	switch s {
	case LengthDeclared:
		return "declared"
	case LengthInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// ContentLength is the body length together with its provenance.
type ContentLength struct {
	N      int
	Source LengthSource
}

// contentLength scans headers case-insensitively. The last well-formed value
// wins; malformed values never override a well-formed one.
func contentLength(headers []Header) ContentLength {
	cl := ContentLength{Source: LengthAbsent}
	for _, h := range headers {
		if !strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(h.Value)
		switch {
		case err == nil && n >= 0:
			cl = ContentLength{N: n, Source: LengthDeclared}
		case cl.Source != LengthDeclared:
			cl = ContentLength{Source: LengthInvalid}
		}
	}
	return cl
}

// Request is one parsed HTTP request.
type Request struct {
	Method  Method
	Target  string
	Headers []Header
	Length  ContentLength

	// Body aliases the parser's buffer and is valid until the next Parse or
	// Release.
	Body []byte
}

// Limits bounds the memory a single request may use.
type Limits struct {
	MaxHeaderBytes int // request line plus all headers, terminators included
	MaxBodyBytes   int
}

// Parser turns a byte stream into a Request. It owns the per-request buffers
// and reuses them for every connection, so at most one request's worth of
// memory is retained.
type Parser struct {
	limits Limits
	line   []byte
	body   []byte
}

// NewParser returns a Parser enforcing limits.
func NewParser(limits Limits) *Parser {
	return &Parser{
		limits: limits,
		line:   make([]byte, 0, limits.MaxHeaderBytes),
	}
}

// Parse reads one request from r.
//
// Header lines are consumed until an empty line. The connection closing
// before the empty line ends the header block early. A POST with a declared
// length above MaxBodyBytes returns the parsed headers with ErrBodyTooLarge
// and leaves the body unread.
func (p *Parser) Parse(r *ByteReader) (*Request, error) {
	req := &Request{}
	remaining := p.limits.MaxHeaderBytes
	first := true

	for {
		line, err := r.ReadLine(p.line, remaining)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return nil, err
		}
		remaining -= len(line)
		if len(line) == 0 || isBlank(line) {
			break
		}

		text := strings.TrimRight(string(line), "\r\n")
		if first {
			method, rest, _ := strings.Cut(text, " ")
			req.Method = parseMethod(method)
			req.Target, _, _ = strings.Cut(rest, " ")
			first = false
		} else if name, value, ok := strings.Cut(text, ":"); ok {
			req.Headers = append(req.Headers, Header{
				Name:  strings.TrimSpace(name),
				Value: strings.TrimSpace(value),
			})
		}
		if eof {
			break
		}
	}

	req.Length = contentLength(req.Headers)
	if req.Method != MethodPost || req.Length.N == 0 {
		return req, nil
	}
	if req.Length.N > p.limits.MaxBodyBytes {
		return req, ErrBodyTooLarge
	}

	if cap(p.body) < req.Length.N {
		p.body = make([]byte, req.Length.N)
	}
	body := p.body[:req.Length.N]
	if err := r.ReadFull(body); err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// Release zeroes the retained body buffer so request data does not outlive
// the connection. Capacity is kept for the next request.
func (p *Parser) Release() {
	clear(p.body[:cap(p.body)])
}

// HighWater returns the number of bytes the parser retains between requests.
func (p *Parser) HighWater() int {
	return cap(p.line) + cap(p.body)
}

// isBlank reports whether line holds only a line terminator.
func isBlank(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}
