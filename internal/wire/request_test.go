package wire

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MaxHeaderBytes: 256, MaxBodyBytes: 64}

func parseString(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	r := NewByteReader(32, 0)
	r.Reset(strings.NewReader(raw))
	return NewParser(testLimits).Parse(r)
}

func TestParseGet(t *testing.T) {
	req, err := parseString(t, "GET / HTTP/1.1\r\nHost: 192.168.4.1\r\nAccept: text/html\r\n\r\n")
	require.NoError(t, err)

	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/", req.Target)
	assert.Equal(t, []Header{
		{Name: "Host", Value: "192.168.4.1"},
		{Name: "Accept", Value: "text/html"},
	}, req.Headers)
	assert.Equal(t, ContentLength{Source: LengthAbsent}, req.Length)
	assert.Empty(t, req.Body)
}

func TestParsePostBody(t *testing.T) {
	req, err := parseString(t, "POST / HTTP/1.1\r\ncontent-length: 12\r\n\r\nimage_data=ffTRAILING")
	require.NoError(t, err)

	assert.Equal(t, MethodPost, req.Method)
	assert.Equal(t, ContentLength{N: 12, Source: LengthDeclared}, req.Length)
	assert.Equal(t, "image_data=f", string(req.Body))
}

func TestParseBareLF(t *testing.T) {
	req, err := parseString(t, "POST / HTTP/1.0\nContent-Length: 3\n\nabc")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(req.Body))
}

func TestParseBodyOnlyForPost(t *testing.T) {
	req, err := parseString(t, "PUT / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	require.NoError(t, err)

	assert.Equal(t, MethodOther, req.Method)
	assert.Equal(t, 3, req.Length.N)
	assert.Empty(t, req.Body)
}

func TestParseMethodIsLeadingToken(t *testing.T) {
	req, err := parseString(t, "GET /POST HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method)
	assert.Empty(t, req.Body)
}

func TestContentLengthPolicy(t *testing.T) {
	tests := []struct {
		name    string
		headers []Header
		want    ContentLength
	}{
		{"absent", nil, ContentLength{Source: LengthAbsent}},
		{"declared", []Header{{"Content-Length", "10"}}, ContentLength{N: 10, Source: LengthDeclared}},
		{"case insensitive", []Header{{"CONTENT-LENGTH", "7"}}, ContentLength{N: 7, Source: LengthDeclared}},
		{"non integer defaults to zero", []Header{{"Content-Length", "ten"}}, ContentLength{Source: LengthInvalid}},
		{"negative defaults to zero", []Header{{"Content-Length", "-5"}}, ContentLength{Source: LengthInvalid}},
		{"last valid wins", []Header{{"Content-Length", "1"}, {"Content-Length", "2"}}, ContentLength{N: 2, Source: LengthDeclared}},
		{"invalid does not override", []Header{{"Content-Length", "4"}, {"Content-Length", "x"}}, ContentLength{N: 4, Source: LengthDeclared}},
		{"other headers ignored", []Header{{"X-Content-Length", "9"}}, ContentLength{Source: LengthAbsent}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentLength(tt.headers))
		})
	}
}

func TestParseInvalidContentLengthSkipsBody(t *testing.T) {
	req, err := parseString(t, "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\nimage_data=00")
	require.NoError(t, err)
	assert.Equal(t, LengthInvalid, req.Length.Source)
	assert.Empty(t, req.Body)
}

func TestParseHeaderTooLarge(t *testing.T) {
	long := "GET / HTTP/1.1\r\nX-Fill: " + strings.Repeat("a", 300) + "\r\n\r\n"
	_, err := parseString(t, long)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestParseHeaderBudgetIsCumulative(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < 20; i++ {
		b.WriteString("X-Line: 0123456789\r\n")
	}
	b.WriteString("\r\n")

	_, err := parseString(t, b.String())
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestParseBodyTooLarge(t *testing.T) {
	req, err := parseString(t, "POST / HTTP/1.1\r\nContent-Length: 65\r\n\r\n")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	require.NotNil(t, req)
	assert.Equal(t, MethodPost, req.Method)
}

func TestParseEOFEndsHeaders(t *testing.T) {
	req, err := parseString(t, "GET / HTTP/1.1\r\nHost: x")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, []Header{{Name: "Host", Value: "x"}}, req.Headers)
}

func TestParseEmptyConnection(t *testing.T) {
	req, err := parseString(t, "")
	require.NoError(t, err)
	assert.Equal(t, MethodOther, req.Method)
}

func TestParseTruncatedBody(t *testing.T) {
	_, err := parseString(t, "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrReadTimeout)
}

func TestParseBodyTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_, _ = io.WriteString(client, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nabc")
	}()

	r := NewByteReader(32, 50*time.Millisecond)
	r.Reset(server)
	start := time.Now()
	_, err := NewParser(testLimits).Parse(r)

	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParseHeaderTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_, _ = io.WriteString(client, "GET / HTTP/1.1\r\n")
	}()

	r := NewByteReader(32, 50*time.Millisecond)
	r.Reset(server)
	_, err := NewParser(testLimits).Parse(r)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestIdleTimeoutIsPerRead(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	// Each fragment arrives within the idle window although the whole
	// request takes longer than it.
	go func() {
		for _, part := range []string{"POST / HTTP/1.1\r\n", "Content-Length: 4\r\n", "\r\n", "ab", "cd"} {
			time.Sleep(30 * time.Millisecond)
			if _, err := io.WriteString(client, part); err != nil {
				return
			}
		}
	}()

	r := NewByteReader(32, 100*time.Millisecond)
	r.Reset(server)
	req, err := NewParser(testLimits).Parse(r)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(req.Body))
}

func TestReleaseKeepsCapacity(t *testing.T) {
	p := NewParser(testLimits)
	r := NewByteReader(32, 0)

	r.Reset(strings.NewReader("POST / HTTP/1.1\r\nContent-Length: 40\r\n\r\n" + strings.Repeat("z", 40)))
	req, err := p.Parse(r)
	require.NoError(t, err)
	require.Len(t, req.Body, 40)

	mark := p.HighWater()
	p.Release()
	assert.Equal(t, mark, p.HighWater())
	for i, b := range req.Body {
		if b != 0 {
			t.Fatalf("body[%d] = %q after Release, want 0", i, b)
		}
	}

	// A smaller request reuses the same buffer.
	r.Reset(strings.NewReader("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"))
	_, err = p.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, mark, p.HighWater())
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(timeoutErr{}), ErrReadTimeout)
	assert.Equal(t, io.EOF, classify(io.EOF))

	plain := errors.New("reset by peer")
	assert.Equal(t, plain, classify(plain))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMethodString(t *testing.T) {
	assert.Equal(t, "GET", MethodGet.String())
	assert.Equal(t, "POST", MethodPost.String())
	assert.Equal(t, "OTHER", MethodOther.String())
	assert.Equal(t, "invalid", LengthInvalid.String())
}
