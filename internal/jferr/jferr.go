// Package jferr provides the fixed-width error code scheme shared by
// jiukun, clieng, and configmgr: every error carries a module id, a code
// within that module, and an optional flag marking it as derived from an
// OS syscall errno. The shape is carried over from the teacher's own
// *Error type (op, code, errno, message, wrapped inner error) and
// generalized from one module (ublk) to three.
package jferr

import (
	"fmt"
	"syscall"
)

// Module identifies which subsystem a Code belongs to.
type Module uint32

const (
	ModuleJiukun Module = iota + 1
	ModuleClieng
	ModuleConfigmgr
)

func (m Module) String() string {
	switch m {
	case ModuleJiukun:
		return "jiukun"
	case ModuleClieng:
		return "clieng"
	case ModuleConfigmgr:
		return "configmgr"
	default:
		return "unknown"
	}
}

// Code packs a module id and a code number into one comparable value:
// bits 24-31 are the module, bit 23 marks "has an OS errno attached", bits
// 0-22 are the code proper. This mirrors the module/code partition
// spec.md §7 describes and original_source/logger/errcode.c implements in
// C (a module field and a code field per error number).
type Code uint32

const osErrnoBit = 1 << 23

func newCode(m Module, code uint32) Code {
	return Code(uint32(m)<<24 | (code & (osErrnoBit - 1)))
}

// Module returns the module this code belongs to.
func (c Code) Module() Module { return Module(uint32(c) >> 24) }

// HasErrno reports whether the code's errno bit (bit 23) is set. Nothing
// in this package sets that bit; NewWithErrno records the errno on the
// *Error and leaves the Code unchanged.
func (c Code) HasErrno() bool { return uint32(c)&osErrnoBit != 0 }

// Error is a structured jiufeng error: an operation name, the failing
// Code, an optional OS errno, a human message, and an optional wrapped
// inner error. Shape carried over from the teacher's *Error.
type Error struct {
	Op    string
	Code  Code
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("%s code=0x%06x", e.Code.Module(), uint32(e.Code)&0xffffff)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("jiufeng: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("jiufeng: %s", msg)
}

// Unwrap supports errors.Is/As against the wrapped inner error.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is against any target that reports a Code (e.g.
// errors.Is(err, jiukun.ErrOutOfMemory) where ErrOutOfMemory is a
// Sentinel) or against another *Error, comparing Codes only.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if c, ok := target.(codeError); ok {
		return e.Code == c.Code()
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// codeError lets error values that report a Code, such as Sentinel,
// participate in errors.Is without every caller constructing a full *Error.
type codeError interface {
	Code() Code
}

// New creates a structured error for op with a fixed message.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewWithErrno creates a structured error carrying an OS errno.
func NewWithErrno(op string, code Code, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: code, Errno: errno, Msg: errno.Error()}
}

// Wrap attaches op and code to an existing error, preserving it as Inner.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// Sentinel is a named, comparable error value for one Code — the thing
// packages declare as `var ErrNotFound = jferr.NewSentinel(...)` so callers
// can both print it directly and match it with errors.Is against errors
// returned deeper in the stack (via *Error.Is / codeError above).
type Sentinel struct {
	code Code
	msg  string
}

// NewSentinel declares a named error for a module+code pair.
func NewSentinel(m Module, code uint32, msg string) Sentinel {
	return Sentinel{code: newCode(m, code), msg: msg}
}

func (s Sentinel) Error() string { return s.msg }

// Code returns the underlying Code, satisfying codeError.
func (s Sentinel) Code() Code { return s.code }

// New builds a full *Error from this sentinel for a specific operation.
func (s Sentinel) New(op string) *Error {
	return &Error{Op: op, Code: s.code, Msg: s.msg}
}

// NewWithErrno builds a full *Error from this sentinel carrying an errno.
func (s Sentinel) NewWithErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: s.code, Errno: errno, Msg: s.msg}
}

// IsCode reports whether err (or any error it wraps) carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Code == code {
				return true
			}
			err = e.Inner
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
