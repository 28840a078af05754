package configmgr

import "github.com/jiufeng-go/jiufeng/internal/jferr"

// Errors, namespaced under jferr.ModuleConfigmgr, per spec.md §7's
// "Config/transaction" error list.
var (
	ErrNotFound                   = jferr.NewSentinel(jferr.ModuleConfigmgr, 1, "config entry not found")
	ErrTransactionNotFound        = jferr.NewSentinel(jferr.ModuleConfigmgr, 2, "transaction id unknown or already finished")
	ErrTimeout                    = jferr.NewSentinel(jferr.ModuleConfigmgr, 3, "transaction timed out")
	ErrSQLCompileError            = jferr.NewSentinel(jferr.ModuleConfigmgr, 4, "backend SQL compile error")
	ErrSQLEvalError               = jferr.NewSentinel(jferr.ModuleConfigmgr, 5, "backend SQL evaluation error")
	ErrPersistencyInitError       = jferr.NewSentinel(jferr.ModuleConfigmgr, 6, "backend persistence init error")
	ErrUnsupportedPersistencyType = jferr.NewSentinel(jferr.ModuleConfigmgr, 7, "unsupported persistence type")
	ErrReachMaxTransaction        = jferr.NewSentinel(jferr.ModuleConfigmgr, 8, "maximum concurrent transactions reached")
	ErrNotInitialized             = jferr.NewSentinel(jferr.ModuleConfigmgr, 9, "config store not initialized")
)
