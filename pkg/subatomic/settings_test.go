package subatomic_test

import (
	"testing"

	"github.com/marcodd23/go-subatomic/pkg/configmgr"
	"github.com/marcodd23/go-subatomic/pkg/subatomic"
	"github.com/stretchr/testify/assert"
)

func TestSettingsFromConfig(t *testing.T) {
	assert.Equal(t, subatomic.DefaultSettings(), subatomic.SettingsFromConfig(nil))

	settings := subatomic.SettingsFromConfig(&configmgr.SubatomicConfig{
		AfterCommitNeedsTransaction:           false,
		RunAfterCommitCallbacksInTests:        true,
		RaiseIfPendingTestcaseOnCommitOnEnter: true,
	})

	assert.Equal(t, subatomic.Settings{
		RunAfterCommitCallbacksInTests:        true,
		RaiseIfPendingTestcaseOnCommitOnEnter: true,
	}, settings)
}

func TestNewManager_Defaults(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, subatomic.DefaultSettings(), e.m.Settings())
	assert.Equal(t, []string{defaultDB, otherDB}, e.m.Connections().Aliases())
}
