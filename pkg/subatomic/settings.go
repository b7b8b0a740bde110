package subatomic

import "github.com/marcodd23/go-subatomic/pkg/configmgr"

// Settings holds the behavioural toggles of a Manager. The zero value turns every toggle off, use DefaultSettings
// for the documented defaults.
type Settings struct {
	// AfterCommitNeedsTransaction makes RunAfterCommit fail outside of a transaction instead of running the
	// callback immediately.
	AfterCommitNeedsTransaction bool
	// RunAfterCommitCallbacksInTests emulates the commit of managed transactions opened directly inside a test
	// case wrapper, running their after-commit callbacks on clean exit.
	RunAfterCommitCallbacksInTests bool
	// CatchUnhandledAfterCommitCallbacksInTests makes opening a transaction fail while after-commit callbacks
	// registered outside of it are still pending on something other than a test case wrapper.
	CatchUnhandledAfterCommitCallbacksInTests bool
	// RaiseIfPendingTestcaseOnCommitOnEnter makes opening a transaction fail while the test case wrapper itself
	// holds pending after-commit callbacks. When off, those callbacks run at the commit of the new transaction.
	RaiseIfPendingTestcaseOnCommitOnEnter bool
}

// DefaultSettings returns the settings with every toggle on.
func DefaultSettings() Settings {
	return Settings{
		AfterCommitNeedsTransaction:               true,
		RunAfterCommitCallbacksInTests:            true,
		CatchUnhandledAfterCommitCallbacksInTests: true,
		RaiseIfPendingTestcaseOnCommitOnEnter:     true,
	}
}

// SettingsFromConfig maps the subatomic section of the configuration. A nil section yields DefaultSettings.
func SettingsFromConfig(conf *configmgr.SubatomicConfig) Settings {
	if conf == nil {
		return DefaultSettings()
	}

	return Settings{
		AfterCommitNeedsTransaction:               conf.AfterCommitNeedsTransaction,
		RunAfterCommitCallbacksInTests:            conf.RunAfterCommitCallbacksInTests,
		CatchUnhandledAfterCommitCallbacksInTests: conf.CatchUnhandledAfterCommitCallbacksInTests,
		RaiseIfPendingTestcaseOnCommitOnEnter:     conf.RaiseIfPendingTestcaseOnCommitOnEnter,
	}
}
