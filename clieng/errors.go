package clieng

import "github.com/jiufeng-go/jiufeng/internal/jferr"

// Errors, namespaced under ModuleClieng per internal/jferr. BlankCmd and
// CommentCmd are "silent" outcomes per spec.md §4.6 — Registry.Dispatch
// reports them via ParseOutcome, not by returning these as errors, but
// they're exposed as sentinels so callers logging a dispatch result can
// still match on them.
var (
	ErrBlankCmd         = jferr.NewSentinel(jferr.ModuleClieng, 10, "blank command line")
	ErrCommentCmd       = jferr.NewSentinel(jferr.ModuleClieng, 11, "comment line")
	ErrInvalidCommand   = jferr.NewSentinel(jferr.ModuleClieng, 12, "unrecognized command")
	ErrCmdTooLong       = jferr.NewSentinel(jferr.ModuleClieng, 13, "command line too long")
	ErrCmdAlreadyExist  = jferr.NewSentinel(jferr.ModuleClieng, 14, "command already registered")
	ErrCmdNameTooLong   = jferr.NewSentinel(jferr.ModuleClieng, 15, "command name too long")
	ErrLineTooLong      = jferr.NewSentinel(jferr.ModuleClieng, 16, "history line exceeds max length")
	ErrMoreCanceled     = jferr.NewSentinel(jferr.ModuleClieng, 17, "paged output canceled")
	ErrMissingOptionArg = jferr.NewSentinel(jferr.ModuleClieng, 18, "option requires an argument")
	ErrInvalidOption    = jferr.NewSentinel(jferr.ModuleClieng, 19, "invalid option")
)
