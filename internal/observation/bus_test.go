package observation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
)

func testBusConfig() config.BusConfig {
	return config.BusConfig{
		RingCapacity:      5,
		AlertRingCapacity: 5,
		SnapshotInterval:  5,
		SnapshotRing:      5,
	}
}

func TestPublishAssignsEventIDAndTimestamp(t *testing.T) {
	b := New(testBusConfig(), nil)
	e := b.Publish(context.Background(), model.FlowEvent{FlowType: "negotiation", EventName: "started"})
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestRingNeverExceedsConfiguredCapacity(t *testing.T) {
	b := New(testBusConfig(), nil)
	for i := 0; i < 20; i++ {
		b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "check"})
	}
	assert.Equal(t, 5, b.Stats().RingSize)
	assert.LessOrEqual(t, b.Stats().RingSize, b.Stats().RingCapacity)
}

func TestRecentPreservesPublicationOrder(t *testing.T) {
	b := New(testBusConfig(), nil)
	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), model.FlowEvent{FlowType: "t", EventName: eventName(i)})
	}
	recent := b.Recent(0, "")
	require.Len(t, recent, 3)
	assert.Equal(t, "e0", recent[0].EventName)
	assert.Equal(t, "e1", recent[1].EventName)
	assert.Equal(t, "e2", recent[2].EventName)
}

func eventName(i int) string {
	return "e" + string(rune('0'+i))
}

func TestRecentFiltersByFlowType(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "a"})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "negotiation", EventName: "n"})

	got := b.Recent(0, "negotiation")
	require.Len(t, got, 1)
	assert.Equal(t, "n", got[0].EventName)
}

func TestSubscribeReceivesOnlyMatchingEvents(t *testing.T) {
	b := New(testBusConfig(), nil)
	var mu sync.Mutex
	var received []string
	b.Subscribe(func(e model.FlowEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.EventName)
	}, Filter{FlowType: "negotiation"})

	b.Publish(context.Background(), model.FlowEvent{FlowType: "negotiation", EventName: "n1"})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "a1"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"n1"}, received)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(testBusConfig(), nil)
	count := 0
	id := b.Subscribe(func(e model.FlowEvent) { count++ }, Filter{})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "first"})
	b.Unsubscribe(id)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "second"})
	assert.Equal(t, 1, count)
}

func TestSubscriberPanicIsRecoveredAndOthersStillRun(t *testing.T) {
	b := New(testBusConfig(), nil)
	secondRan := false
	b.Subscribe(func(e model.FlowEvent) { panic("boom") }, Filter{})
	b.Subscribe(func(e model.FlowEvent) { secondRan = true }, Filter{})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "e"})
	})
	assert.True(t, secondRan)
}

func TestCriticalEventAlwaysAlerts(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "meltdown", Severity: model.SeverityCritical})
	alerts := b.Alerts(false)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
}

func TestRollbackNamedEventAlertsAsWarning(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "emergence", EventName: "variant_rollback", Severity: model.SeverityInfo})
	alerts := b.Alerts(false)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityWarning, alerts[0].Severity)
}

func TestWorkflowErrorAlertsAsWarning(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "workflow", EventName: "step_failed", Severity: model.SeverityError})
	alerts := b.Alerts(false)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityWarning, alerts[0].Severity)
}

func TestNonMatchingEventRaisesNoAlert(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "routine", Severity: model.SeverityInfo})
	assert.Empty(t, b.Alerts(false))
}

func TestAddRuleRegistersAdditionalRule(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.AddRule(func(e model.FlowEvent) (model.FlowEvent, bool) {
		if e.EventName != "custom_trigger" {
			return model.FlowEvent{}, false
		}
		return model.FlowEvent{FlowType: e.FlowType, EventName: "alert.custom", Severity: model.SeverityWarning}, true
	})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "custom_trigger", Severity: model.SeverityInfo})
	alerts := b.Alerts(false)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert.custom", alerts[0].EventName)
}

func TestOnAlertInvokedWhenRuleFires(t *testing.T) {
	b := New(testBusConfig(), nil)
	var got model.FlowEvent
	b.OnAlert(func(e model.FlowEvent) { got = e })
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "bad", Severity: model.SeverityCritical})
	assert.Equal(t, model.SeverityCritical, got.Severity)
}

func TestAckAlertRemovesFromActiveView(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "x", EventName: "bad", Severity: model.SeverityCritical})
	alerts := b.Alerts(false)
	require.Len(t, alerts, 1)

	ok := b.AckAlert(alerts[0].EventID)
	assert.True(t, ok)
	assert.Empty(t, b.Alerts(true))
	assert.Len(t, b.Alerts(false), 1)
}

func TestAckAlertUnknownIDReturnsFalse(t *testing.T) {
	b := New(testBusConfig(), nil)
	assert.False(t, b.AckAlert("does-not-exist"))
}

func TestStatsCountsByFlowTypeAndSeverity(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "a", Severity: model.SeverityInfo})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "b", Severity: model.SeverityInfo})
	b.Publish(context.Background(), model.FlowEvent{FlowType: "negotiation", EventName: "c", Severity: model.SeverityWarning})

	stats := b.Stats()
	assert.EqualValues(t, 3, stats.TotalPublished)
	assert.EqualValues(t, 2, stats.ByFlowType["alignment"])
	assert.EqualValues(t, 1, stats.ByFlowType["negotiation"])
	assert.EqualValues(t, 2, stats.BySeverity[model.SeverityInfo])
	assert.EqualValues(t, 1, stats.BySeverity[model.SeverityWarning])
}

func TestSinceFiltersByTimestamp(t *testing.T) {
	b := New(testBusConfig(), nil)
	first := b.Publish(context.Background(), model.FlowEvent{FlowType: "alignment", EventName: "a"})
	second := b.Publish(context.Background(), model.FlowEvent{FlowType: "negotiation", EventName: "b"})

	got := b.Since(first.Timestamp, "")
	assert.Len(t, got, 2)

	got = b.Since(second.Timestamp.Add(1), "")
	assert.Empty(t, got)
}
