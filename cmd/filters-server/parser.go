// parser.go reads client commands in the request subset of RESP.
//
// Clients send commands in one of two shapes:
//
//	RESP array:  *2\r\n$9\r\nBF.EXISTS\r\n...   (client libraries)
//	Inline:      BF.EXISTS users alice\r\n      (telnet, netcat, redis-benchmark)
//
// Every length the client controls is bounded before anything is allocated,
// so a hostile "$999999999" or "*999999999" header, or a line that never ends,
// is rejected instead of exhausting memory.

package main

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

const (
	// MaxBulkLength bounds a single argument. Filter items are short keys,
	// so this is far below the 512MB Redis allows.
	MaxBulkLength = 64 * 1024 * 1024

	// MaxArrayLen bounds the number of arguments of one command (BF.MADD and
	// BF.MEXISTS are the only variadic commands).
	MaxArrayLen = 1 << 20

	// MaxLineSize bounds header lines and inline commands.
	MaxLineSize = 64 * 1024
)

// protocolError is a malformed request. Its text is sent back to the client
// before the connection is closed.
type protocolError string

func (e protocolError) Error() string { return string(e) }

const (
	ErrInvalidSyntax = protocolError("ERR protocol error: invalid syntax")
	ErrLineTooLong   = protocolError("ERR protocol error: line too long")
	ErrBulkTooLarge  = protocolError("ERR protocol error: bulk string too large")
	ErrArrayTooLong  = protocolError("ERR protocol error: too many arguments")
)

// Parser decodes commands from a client connection.
type Parser struct {
	reader *bufio.Reader
}

func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReaderSize(r, 4096)}
}

// Parse reads the next command and returns its parts, command name first.
// An empty RESP array or a blank inline line yields an empty slice, which the
// router ignores.
func (p *Parser) Parse() ([]string, error) {
	line, err := p.readLine()
	if err != nil {
		return nil, err
	}

	if len(line) > 0 && line[0] == '*' {
		return p.parseArray(line[1:])
	}

	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return []string{}, nil
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return parts, nil
}

// Buffered reports how many bytes of the next command(s) are already read.
// A non-zero value means the client is pipelining.
func (p *Parser) Buffered() int {
	return p.reader.Buffered()
}

// readLine returns the next line without its line terminator.
func (p *Parser) readLine() ([]byte, error) {
	line, isPrefix, err := p.reader.ReadLine()
	if err != nil {
		return nil, err
	}
	if !isPrefix {
		return line, nil
	}

	// The line did not fit the reader buffer; ReadLine's slice is only valid
	// until the next read, so accumulate a copy.
	buf := bytes.NewBuffer(append([]byte(nil), line...))
	for isPrefix {
		line, isPrefix, err = p.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		if buf.Len()+len(line) > MaxLineSize {
			return nil, ErrLineTooLong
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

func (p *Parser) parseArray(header []byte) ([]string, error) {
	count, err := parseLength(header)
	if err != nil {
		return nil, err
	}

	// *0 and the null array *-1 carry no command.
	if count <= 0 {
		return []string{}, nil
	}
	if count > MaxArrayLen {
		return nil, ErrArrayTooLong
	}

	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, err := p.readBulk()
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return parts, nil
}

// readBulk reads "$<len>\r\n<data>\r\n". The null bulk string ($-1) reads as
// an empty argument.
func (p *Parser) readBulk() (string, error) {
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		return "", ErrInvalidSyntax
	}

	n, err := parseLength(line[1:])
	if err != nil {
		return "", err
	}
	switch {
	case n == -1:
		return "", nil
	case n < 0:
		return "", ErrInvalidSyntax
	case n > MaxBulkLength:
		return "", ErrBulkTooLarge
	}

	// Data and trailing CRLF in a single read.
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(p.reader, buf); err != nil {
		return "", err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return "", ErrInvalidSyntax
	}
	return string(buf[:n]), nil
}

func parseLength(b []byte) (int, error) {
	n, err := strconv.Atoi(string(bytes.TrimSpace(b)))
	if err != nil {
		return 0, ErrInvalidSyntax
	}
	return n, nil
}
