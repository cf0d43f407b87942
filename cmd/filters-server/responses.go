package main

import (
	"io"
	"strconv"
)

// Pre-encoded replies for the hottest paths: BF.ADD and BF.EXISTS answer
// with 0 or 1 on almost every call.
var (
	respOK   = []byte("+OK\r\n")
	respPong = []byte("+PONG\r\n")
	respZero = []byte(":0\r\n")
	respOne  = []byte(":1\r\n")
	respNil  = []byte("$-1\r\n")
)

// The append helpers build replies into a caller-owned buffer so composite
// replies (BF.INFO) go out in a single Write.

func appendSimpleString(buf []byte, s string) []byte {
	buf = append(buf, '+')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendError(buf []byte, msg string) []byte {
	buf = append(buf, '-')
	buf = append(buf, msg...)
	return append(buf, '\r', '\n')
}

func appendBulkString(buf []byte, s string) []byte {
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendInteger(buf []byte, i int64) []byte {
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, i, 10)
	return append(buf, '\r', '\n')
}

func appendArrayHeader(buf []byte, n int) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(n), 10)
	return append(buf, '\r', '\n')
}

func writeSimpleString(w io.Writer, s string) error {
	switch s {
	case "OK":
		_, err := w.Write(respOK)
		return err
	case "PONG":
		_, err := w.Write(respPong)
		return err
	}
	_, err := w.Write(appendSimpleString(make([]byte, 0, len(s)+3), s))
	return err
}

func writeError(w io.Writer, msg string) error {
	_, err := w.Write(appendError(make([]byte, 0, len(msg)+3), msg))
	return err
}

func writeBulkString(w io.Writer, s string) error {
	_, err := w.Write(appendBulkString(make([]byte, 0, len(s)+16), s))
	return err
}

func writeInteger(w io.Writer, i int64) error {
	switch i {
	case 0:
		_, err := w.Write(respZero)
		return err
	case 1:
		_, err := w.Write(respOne)
		return err
	}
	_, err := w.Write(appendInteger(make([]byte, 0, 24), i))
	return err
}

func writeNil(w io.Writer) error {
	_, err := w.Write(respNil)
	return err
}

// writeIntegerArray writes membership results (BF.MADD, BF.MEXISTS).
func writeIntegerArray(w io.Writer, values []int64) error {
	buf := appendArrayHeader(make([]byte, 0, 8+len(values)*4), len(values))
	for _, v := range values {
		buf = appendInteger(buf, v)
	}
	_, err := w.Write(buf)
	return err
}
