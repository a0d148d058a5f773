// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/model"
)

func TestEvaluateSystem_FiresCriticalOverWarning(t *testing.T) {
	thresholds := config.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds, nil, time.Hour, testLogger())

	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: thresholds.CPUCriticalPct + 1})

	history := engine.History()
	require.Len(t, history, 1)
	assert.Equal(t, "cpu_critical", history[0].Rule)
	assert.Equal(t, SeverityCritical, history[0].Severity)
}

func TestEvaluateSystem_WarningBelowCritical(t *testing.T) {
	thresholds := config.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds, nil, time.Hour, testLogger())

	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: thresholds.CPUWarningPct + 1})

	history := engine.History()
	require.Len(t, history, 1)
	assert.Equal(t, "cpu_warning", history[0].Rule)
}

func TestEvaluateSystem_NoBreachFiresNothing(t *testing.T) {
	thresholds := config.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds, nil, time.Hour, testLogger())

	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: 1, MemoryUsage: 1})

	assert.Empty(t, engine.History())
}

func TestEvaluatePath_LatencyLossAndScoreFamilies(t *testing.T) {
	thresholds := config.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds, nil, time.Hour, testLogger())
	p := model.Path{ID: 9}

	engine.EvaluatePath(p, model.PathMetrics{
		LatencyMS:     thresholds.PathLatencyWarnMS + 1,
		PacketLossPct: thresholds.PacketLossWarnPct + 1,
		Score:         thresholds.PathScoreCriticalMin - 1,
	})

	history := engine.History()
	require.Len(t, history, 3)
	rules := map[string]bool{}
	for _, e := range history {
		rules[e.Rule] = true
		require.NotNil(t, e.PathID)
		assert.Equal(t, int64(9), *e.PathID)
	}
	assert.True(t, rules["path_latency_warn_9"])
	assert.True(t, rules["path_loss_warn_9"])
	assert.True(t, rules["path_score_critical_9"])
}

func TestFire_RespectsCooldown(t *testing.T) {
	thresholds := config.DefaultAlertThresholds()
	engine := NewAlertEngine(thresholds, nil, time.Hour, testLogger())

	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: thresholds.CPUCriticalPct + 1})
	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: thresholds.CPUCriticalPct + 5})

	assert.Len(t, engine.History(), 1, "second breach within the cooldown window must not re-fire")
}

func TestFire_DeliversWebhook(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&evt))
		received <- evt
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	thresholds := config.DefaultAlertThresholds()
	channel := Channel{Name: "test", URL: server.URL}
	engine := NewAlertEngine(thresholds, []Channel{channel}, time.Hour, testLogger())

	engine.EvaluateSystem(model.SystemMetrics{CPUUsage: thresholds.CPUCriticalPct + 1})

	select {
	case evt := <-received:
		assert.Equal(t, "cpu_critical", evt.Rule)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered in time")
	}
}
