package alarm

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/senbaris/tempdbcheck/internal/logger"
	"github.com/senbaris/tempdbcheck/internal/model"
)

// Alarm statuses
const (
	StatusTriggered = "triggered"
	StatusResolved  = "resolved"
)

// Event bir kuralın ihlal durumundaki değişimi
type Event struct {
	ID             string    `json:"id"`
	Server         string    `json:"server"`
	Rule           string    `json:"rule"`
	Status         string    `json:"status"`
	Recommended    string    `json:"recommended"`
	CurrentSetting string    `json:"current_setting"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// AlarmMonitor tekrarlanan kontrollerde yalnızca durum değişimlerini raporlar
type AlarmMonitor struct {
	alarmCache     map[string]*Event // Son gönderilen alarmları saklar
	alarmCacheLock sync.RWMutex
	now            func() time.Time
}

// NewAlarmMonitor yeni bir alarm monitörü oluşturur
func NewAlarmMonitor() *AlarmMonitor {
	return &AlarmMonitor{
		alarmCache: make(map[string]*Event),
		now:        time.Now,
	}
}

// Observe compares a report with the previously seen state per (server, rule)
// and returns a "triggered" event for each newly failing rule and a
// "resolved" event for each rule that recovered.
func (m *AlarmMonitor) Observe(report *model.Report) []Event {
	var events []Event

	m.alarmCacheLock.Lock()
	defer m.alarmCacheLock.Unlock()

	for _, r := range report.Results {
		alarmKey := report.Server + "|" + r.Rule
		prevAlarm, exists := m.alarmCache[alarmKey]
		triggered := exists && prevAlarm.Status == StatusTriggered

		switch {
		case r.IsViolation() && !triggered:
			ev := m.newEvent(report.Server, r, StatusTriggered,
				"tempdb rule "+r.Rule+" deviates from best practice")
			m.alarmCache[alarmKey] = &ev
			logger.Warning("[%s] %s: recommended %s, current %s", report.Server, r.Rule, r.RecommendedString(), r.CurrentSetting)
			events = append(events, ev)

		case !r.IsViolation() && triggered:
			ev := m.newEvent(report.Server, r, StatusResolved,
				"tempdb rule "+r.Rule+" is back within best practice")
			m.alarmCache[alarmKey] = &ev
			logger.Info("[%s] %s resolved (alarm %s)", report.Server, r.Rule, prevAlarm.ID)
			events = append(events, ev)

		case r.IsViolation() && triggered:
			// Alarm zaten tetiklenmiş, tekrar gönderme
			logger.Debug("[%s] %s hala ihlal durumunda, alarm zaten gönderildi (%s)", report.Server, r.Rule, prevAlarm.ID)
		}
	}
	return events
}

// Active returns the currently triggered alarms for a server.
func (m *AlarmMonitor) Active(server string) []Event {
	m.alarmCacheLock.RLock()
	defer m.alarmCacheLock.RUnlock()

	var out []Event
	for _, ev := range m.alarmCache {
		if ev.Server == server && ev.Status == StatusTriggered {
			out = append(out, *ev)
		}
	}
	return out
}

func (m *AlarmMonitor) newEvent(server string, r model.RuleResult, status, message string) Event {
	return Event{
		ID:             uuid.NewString(),
		Server:         server,
		Rule:           r.Rule,
		Status:         status,
		Recommended:    r.RecommendedString(),
		CurrentSetting: r.CurrentSetting.String(),
		Message:        message,
		Timestamp:      m.now().UTC(),
	}
}
