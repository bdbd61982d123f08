package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senbaris/tempdbcheck/internal/model"
)

func reportWith(server string, fileCount, capped int) *model.Report {
	results := []model.RuleResult{
		{Rule: "File Count", Recommended: model.IntValue(4).Ptr(), CurrentSetting: model.IntValue(fileCount)},
		{Rule: "File MaxSize Set", CurrentSetting: model.IntValue(capped)},
	}
	return model.NewReport(server, "15.0.4153.1", 15, 4, results, model.HasViolations(results))
}

func TestObserve_TriggerOnceThenResolve(t *testing.T) {
	m := NewAlarmMonitor()

	events := m.Observe(reportWith("sql01", 2, 0))
	require.Len(t, events, 1)
	assert.Equal(t, StatusTriggered, events[0].Status)
	assert.Equal(t, "File Count", events[0].Rule)
	assert.Equal(t, "4", events[0].Recommended)
	assert.Equal(t, "2", events[0].CurrentSetting)
	assert.NotEmpty(t, events[0].ID)

	// still failing: no duplicate alarm
	assert.Empty(t, m.Observe(reportWith("sql01", 3, 0)))
	assert.Len(t, m.Active("sql01"), 1)

	events = m.Observe(reportWith("sql01", 4, 0))
	require.Len(t, events, 1)
	assert.Equal(t, StatusResolved, events[0].Status)
	assert.Empty(t, m.Active("sql01"))

	// healthy again: nothing to report
	assert.Empty(t, m.Observe(reportWith("sql01", 4, 0)))
}

func TestObserve_InformationalRuleNeverAlarms(t *testing.T) {
	m := NewAlarmMonitor()
	assert.Empty(t, m.Observe(reportWith("sql01", 4, 3)))
}

func TestObserve_ServersAreIndependent(t *testing.T) {
	m := NewAlarmMonitor()

	require.Len(t, m.Observe(reportWith("sql01", 2, 0)), 1)
	require.Len(t, m.Observe(reportWith("sql02", 2, 0)), 1)
	assert.Len(t, m.Active("sql01"), 1)
	assert.Len(t, m.Active("sql02"), 1)
}
