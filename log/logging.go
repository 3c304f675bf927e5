/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package log implements the leveled, structured logger used by the
// supervisor core. Messages are encoded as RFC5424 syslog lines, with an
// optional terse mode for the window around a shutdown/reboot transition
// where verbose structured output is no longer useful.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

const (
	defaultDepth = 3

	defaultID   = `finit@1`
	maxAppname  = 48
	maxHostname = 255
	maxMsgID    = 32
)

var (
	ErrNotOpen      = errors.New("logger is not open")
	ErrInvalidLevel = errors.New("log level is invalid")
)

// Relay receives a copy of every log line written, independent of the
// underlying writers. Plugins use this to ship log lines elsewhere.
type Relay interface {
	WriteLog(time.Time, []byte) error
}

// Logger is a leveled logger that writes RFC5424-formatted lines to one or
// more writers. It can be switched into terse mode, which drops structured
// data and timestamps down to a single short line - used while the
// supervisor is tearing down for halt/reboot.
type Logger struct {
	mtx      sync.Mutex
	wtrs     []io.WriteCloser
	rls      []Relay
	lvl      Level
	hot      bool
	terse    bool
	hostname string
	appname  string
}

// New creates a new logger at level INFO using wtr as its first writer.
func New(wtr io.WriteCloser) *Logger {
	l := &Logger{
		wtrs: []io.WriteCloser{wtr},
		lvl:  INFO,
		hot:  true,
	}
	l.guessHostnameAppname()
	return l
}

// NewFile creates a logger backed by a plain append-mode file.
func NewFile(p string) (*Logger, error) {
	fout, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return nil, err
	}
	return New(fout), nil
}

// NewDiscardLogger returns a logger that throws every line away; useful as
// a safe default before a real sink is configured.
func NewDiscardLogger() *Logger {
	return New(discardCloser{})
}

func (l *Logger) guessHostnameAppname() {
	if h, err := os.Hostname(); err == nil {
		if len(h) > maxHostname {
			h = h[:maxHostname]
		}
		l.hostname = h
	}
	if len(os.Args) > 0 {
		exe := filepath.Base(os.Args[0])
		if ext := filepath.Ext(exe); len(ext) > 0 && len(ext) < len(exe) {
			exe = strings.TrimSuffix(exe, ext)
		}
		if len(exe) > maxAppname {
			exe = exe[:maxAppname]
		}
		l.appname = exe
	}
}

// SetTerse toggles terse output mode. In terse mode lines are a single
// "TIME LEVEL message" string with no RFC5424 structured data, appropriate
// for the tail end of a shutdown or reboot where the logger itself may be
// about to lose its backing store.
func (l *Logger) SetTerse(v bool) {
	l.mtx.Lock()
	l.terse = v
	l.mtx.Unlock()
}

// Terse reports whether terse mode is active.
func (l *Logger) Terse() bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.terse
}

// SetLevel sets the minimum level that will be emitted.
func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.Valid() {
		return ErrInvalidLevel
	}
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
	return nil
}

func (l *Logger) GetLevel() Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.lvl
}

// AddWriter attaches another writer that will receive every log line.
func (l *Logger) AddWriter(wtr io.WriteCloser) error {
	if wtr == nil {
		return errors.New("invalid writer, is nil")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot {
		return ErrNotOpen
	}
	l.wtrs = append(l.wtrs, wtr)
	return nil
}

// AddRelay attaches a relay that receives a copy of every log line.
func (l *Logger) AddRelay(r Relay) error {
	if r == nil {
		return errors.New("nil relay")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.rls = append(l.rls, r)
	return nil
}

// Close closes every writer owned by the logger.
func (l *Logger) Close() (err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.hot = false
	for _, w := range l.wtrs {
		if lerr := w.Close(); lerr != nil {
			err = lerr
		}
	}
	return
}

func (l *Logger) Debugf(f string, args ...interface{}) { l.outputf(defaultDepth, DEBUG, f, args...) }
func (l *Logger) Infof(f string, args ...interface{})  { l.outputf(defaultDepth, INFO, f, args...) }
func (l *Logger) Warnf(f string, args ...interface{})  { l.outputf(defaultDepth, WARN, f, args...) }
func (l *Logger) Errorf(f string, args ...interface{}) { l.outputf(defaultDepth, ERROR, f, args...) }

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) { l.output(defaultDepth, DEBUG, msg, sds...) }
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.output(defaultDepth, INFO, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.output(defaultDepth, WARN, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) { l.output(defaultDepth, ERROR, msg, sds...) }

// Fatal logs at FATAL and exits the process with code -1.
func (l *Logger) Fatal(msg string, sds ...rfc5424.SDParam) {
	l.output(defaultDepth, FATAL, msg, sds...)
	os.Exit(-1)
}

func (l *Logger) outputf(depth int, lvl Level, f string, args ...interface{}) {
	l.output(depth+1, lvl, fmt.Sprintf(f, args...))
}

func (l *Logger) output(depth int, lvl Level, msg string, sds ...rfc5424.SDParam) {
	l.mtx.Lock()
	skip := l.lvl == OFF || lvl < l.lvl
	terse := l.terse
	hostname, appname := l.hostname, l.appname
	l.mtx.Unlock()
	if skip {
		return
	}
	ts := time.Now()
	loc := callLoc(depth)
	var line string
	if terse {
		line = genTerseLine(ts, lvl, loc, msg)
	} else if b, err := genRFCMessage(ts, lvl.priority(), hostname, appname, loc, msg, sds...); err == nil {
		line = string(b)
	} else {
		line = genTerseLine(ts, lvl, loc, msg)
	}
	l.writeLine(ts, strings.TrimRight(line, "\n\t\r"))
}

func (l *Logger) writeLine(ts time.Time, line string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot {
		return
	}
	for _, w := range l.wtrs {
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
	for _, r := range l.rls {
		r.WriteLog(ts, []byte(line))
	}
}

func genTerseLine(ts time.Time, lvl Level, loc, msg string) string {
	return ts.UTC().Format(time.RFC3339) + " " + lvl.String() + " " + msg
}

// genRFCMessage renders an RFC5424 syslog line with the given structured
// data parameters attached under a single finit@1 element.
func genRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgid, msg string, sds ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: trimLength(maxMsgID, filepath.Base(msgid)),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: defaultID, Parameters: sds}}
	}
	return m.MarshalBinary()
}

func trimLength(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func callLoc(depth int) string {
	if _, file, line, ok := runtime.Caller(depth); ok {
		dir, f := filepath.Split(file)
		return fmt.Sprintf("%s:%d", filepath.Join(filepath.Base(dir), f), line)
	}
	return ""
}

func (l Level) String() string {
	switch l {
	case OFF:
		return `OFF`
	case DEBUG:
		return `DEBUG`
	case INFO:
		return `INFO`
	case WARN:
		return `WARN`
	case ERROR:
		return `ERROR`
	case CRITICAL:
		return `CRITICAL`
	case FATAL:
		return `FATAL`
	}
	return `UNKNOWN`
}

func (l Level) Valid() bool {
	return l >= OFF && l <= FATAL
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case `OFF`:
		return OFF, nil
	case `DEBUG`:
		return DEBUG, nil
	case `INFO`:
		return INFO, nil
	case `WARN`:
		return WARN, nil
	case `ERROR`:
		return ERROR, nil
	case `CRITICAL`:
		return CRITICAL, nil
	case `FATAL`:
		return FATAL, nil
	}
	return OFF, ErrInvalidLevel
}

type discardCloser struct{}

func (discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (discardCloser) Close() error                { return nil }
