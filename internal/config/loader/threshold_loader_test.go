package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perception/internal/perception/playbook"
	"perception/internal/types"
)

const thresholdYAML = `playbooks:
  gold-swing-v0.2:
    eventWindowMinutes: 2880
    biasFloor: 70
    trendFloor: 45
    orderflowNegativeThreshold: 30
    qualityFloor: 40
    aBiasMin: 80
    aTrendMin: 55
    sentimentFloor: 55
    strengthBiasMin: 90
    strengthTrendMin: 65
    strengthOrderflowMin: 55
    strengthQualityMin: 70
  index-swing-v0.2:
    eventWindowMinutes: 2880
    biasFloor: 65
    trendFloor: 40
    volatilityCeiling: 75
    volatilitySoftCeiling: 60
    rangeRegimeBlocked: true
`

func writeThresholds(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadThresholds(t *testing.T) {
	l, err := NewThresholdLoader(writeThresholds(t, thresholdYAML))
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	require.Contains(t, snap.Rules, playbook.GoldSwingID)

	gold := snap.Rules[playbook.GoldSwingID]
	assert.Equal(t, 2880, gold.EventWindowMinutes)
	assert.Equal(t, 70, gold.BiasFloor)
	assert.Equal(t, 90, gold.StrengthBiasMin)

	index := snap.Rules[playbook.IndexSwingID]
	assert.Equal(t, 75, index.VolatilityCeiling)
	assert.True(t, index.RangeRegimeBlocked)
}

func TestSnapshotIsACopy(t *testing.T) {
	l, err := NewThresholdLoader(writeThresholds(t, thresholdYAML))
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.Rules[playbook.GoldSwingID] = playbook.Rules{BiasFloor: 99}
	assert.Equal(t, 70, l.Snapshot().Rules[playbook.GoldSwingID].BiasFloor)
}

func TestRejectsOutOfRangeThreshold(t *testing.T) {
	_, err := NewThresholdLoader(writeThresholds(t, "playbooks:\n  gold-swing-v0.2:\n    biasFloor: 140\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "biasFloor")
}

func TestRequiresPath(t *testing.T) {
	_, err := NewThresholdLoader("  ")
	assert.Error(t, err)
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	l, err := NewThresholdLoader(writeThresholds(t, thresholdYAML))
	require.NoError(t, err)

	got := make(chan Snapshot, 1)
	l.Subscribe(func(s Snapshot) { got <- s })
	snap := <-got
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Rules, 2)
}

func TestRulesFeedRegistryOverrides(t *testing.T) {
	l, err := NewThresholdLoader(writeThresholds(t, thresholdYAML))
	require.NoError(t, err)

	reg := playbook.NewRegistry(l.Snapshot().Rules)
	v, _ := reg.Resolve(types.Asset{ID: "GOLD", Symbol: "GC=F"}, types.ProfileSwing)
	assert.Equal(t, playbook.GoldSwingID, v.ID)
	assert.Equal(t, 70, v.Rules.BiasFloor)
}
