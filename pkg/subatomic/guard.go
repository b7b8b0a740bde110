package subatomic

import "github.com/marcodd23/go-subatomic/pkg/dbx"

// checkPendingCallbacks refuses to open a transaction on top of after-commit callbacks that are still queued.
//
// Callbacks queued on a test case wrapper are only refused while RaiseIfPendingTestcaseOnCommitOnEnter is set;
// otherwise they are left in the queue and run at the emulated commit of the new transaction. Callbacks pending
// anywhere else are refused while CatchUnhandledAfterCommitCallbacksInTests is set.
func checkPendingCallbacks(conn *dbx.Connection, settings Settings) error {
	pending := conn.PendingCallbacks()
	if len(pending) == 0 {
		return nil
	}

	if conn.InnermostIsTestcase() {
		if settings.RaiseIfPendingTestcaseOnCommitOnEnter {
			return &PendingTestcaseAfterCommitCallbacksError{Connection: conn.Alias(), Callbacks: pending}
		}

		return nil
	}

	if settings.CatchUnhandledAfterCommitCallbacksInTests {
		return &UnhandledAfterCommitCallbacksError{Connection: conn.Alias(), Callbacks: pending}
	}

	return nil
}
