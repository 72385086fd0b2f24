package conn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/albenik/go-serial/v2"
	"go.uber.org/zap"
)

const (
	DefaultPattern = "/dev/ttyACM*"
	DefaultBaud    = 115200
	// identifyLines is how many lines are read while waiting for the " I" reply.
	identifyLines = 32
)

// Serial is a Line over a serial port, connected to an accessory controller board.
type Serial struct {
	*Line
	Path string
	Id   Id
	port io.ReadWriteCloser

	closed atomic.Bool
}

// Find returns the serial ports matching pattern (DefaultPattern if empty).
func Find(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return filepath.Glob(pattern)
}

// OpenSerial opens the port at path, identifies the board and starts logging what it reports.
// If path contains glob metacharacters, the first match is used.
func OpenSerial(path string, baud int) (*Serial, error) {
	if strings.ContainsAny(path, "*?[") {
		matches, err := Find(path)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no serial port matches %s", path)
		}
		path = matches[0]
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	zap.S().Infow("connecting", "path", path, "baud", baud)
	port, err := serial.Open(path,
		serial.WithBaudrate(baud),
		serial.WithReadTimeout(1000),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	s, err := newSerial(path, port)
	if err != nil {
		port.Close() // ignore error
		return nil, err
	}
	return s, nil
}

func newSerial(path string, port io.ReadWriteCloser) (*Serial, error) {
	s := &Serial{Line: NewLine(port), Path: path, port: port}
	if _, err := port.Write([]byte("I\n")); err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	reader := bufio.NewReader(port)
	var line string
	for i := 0; !strings.HasPrefix(line, " I"); i++ {
		if i == identifyLines {
			return nil, fmt.Errorf("connect %s: no id reply", path)
		}
		var err error
		line, err = reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("connect %s: reading id: %w", path, err)
		}
	}
	if len(strings.TrimSpace(line)) <= 1 {
		return nil, fmt.Errorf("connect %s: not enough id: %q", path, line)
	}
	s.Id = parseId(line[2:])
	zap.S().Infow("connected", "path", path, "id", s.Id)
	go s.readLoop(reader)
	return s, nil
}

// readLoop logs what the board reports: " E" lines are errors, everything else is debug output.
func (s *Serial) readLoop(reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if s.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return
		}
		if err != nil {
			if retryable(err) {
				continue
			}
			zap.S().Errorw("read line", "path", s.Path, "err", err)
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, " E") {
			zap.S().Errorw("board error", "path", s.Path, "line", line[2:])
			continue
		}
		zap.S().Debugw("board", "path", s.Path, "line", line)
	}
}

// retryable reports whether err is a read timeout; bufio reports a port that keeps timing out
// without data as io.ErrNoProgress.
func retryable(err error) bool {
	var t interface{ Timeout() bool }
	return errors.Is(err, io.ErrNoProgress) || (errors.As(err, &t) && t.Timeout())
}

func (s *Serial) Close() error {
	s.closed.Store(true)
	return s.port.Close()
}
