package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savon-distrib/ledger-engine/ledger"
	"github.com/savon-distrib/ledger-engine/ledger/store"
)

func TestScenarios_LoadEach(t *testing.T) {
	s := newTestServer(t)

	list := decodeAs[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, list, 3)

	for _, sc := range list {
		t.Run(sc.ID, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			current := decodeAs[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, sc.ID, current.ID)

			// Every loaded sale satisfies the payment invariant
			snap, err := ledger.LoadSnapshot(context.Background(), s.handler.Store)
			require.NoError(t, err)
			assert.NotEmpty(t, snap.Sales)
			for _, sale := range snap.Sales {
				assert.NoError(t, ledger.CheckInvariant(sale))
			}
			assert.Len(t, snap.Supermarkets, 3)
			assert.Len(t, snap.Fragrances, 3)
		})
	}
}

func TestScenarios_LoadReplacesPreviousData(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "overdue-receivables"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "fresh-start"}).Code)

	sales := decodeAs[[]SaleDTO](t, s.do(t, http.MethodGet, "/api/sales", nil))
	assert.Len(t, sales, 3)

	// 120 received, 10 + 6 + 4 cartons delivered
	st := decodeAs[StockDTO](t, s.do(t, http.MethodGet, "/api/stock", nil))
	assert.Equal(t, 100, st.Aggregate)
}

func TestScenarios_UnknownAndReset(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "black-friday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/scenarios/load", "not json").Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "fresh-start"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/reset", nil).Code)

	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
	assert.Empty(t, decodeAs[[]SaleDTO](t, s.do(t, http.MethodGet, "/api/sales", nil)))
}

func TestStockDivergenceScenario_RecomputePersistsClampedLevels(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "stock-divergence"}).Code)

	rec := s.do(t, http.MethodPost, "/api/stock/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeAs[StockDTO](t, rec)

	// 20 + 8 - 8 - 3 - 3 cartons in aggregate, lavande clamped at zero
	assert.Equal(t, 14, st.Aggregate)
	require.NotNil(t, st.Divergence)
	assert.Equal(t, []string{"lavande"}, st.Divergence.Negative)

	levels, err := s.handler.Store.LoadFragranceStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[ledger.FragranceID]int{"lavande": 0, "citron": 7, "jasmin": 5}, levels)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestReminders_RunIsIdempotentPerDay(t *testing.T) {
	// GIVEN: five overdue deliveries and one order due yesterday
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "overdue-receivables"}).Code)

	// WHEN: the reminder scan runs twice on the same day
	first := decodeAs[RunResult](t, s.do(t, http.MethodPost, "/api/reminders/run", nil))
	second := decodeAs[RunResult](t, s.do(t, http.MethodPost, "/api/reminders/run", nil))

	// THEN: the second run records nothing new
	assert.Equal(t, RunResult{Created: 6}, first)
	assert.Equal(t, RunResult{Skipped: 6}, second)

	list := decodeAs[[]ReminderDTO](t, s.do(t, http.MethodGet, "/api/reminders", nil))
	require.Len(t, list, 6)
	kinds := map[string]int{}
	for _, r := range list {
		kinds[r.Kind]++
		assert.NotEmpty(t, r.Message)
	}
	assert.Equal(t, 5, kinds[string(ledger.ReminderPaymentDue)])
	assert.Equal(t, 1, kinds[string(ledger.ReminderOrderDue)])
}

func TestReminderScheduler_NextDayCreatesAgain(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mem := store.NewMemory()
	h := NewHandler(mem, nil, logger)
	require.NoError(t, h.loadOverdueReceivablesScenario(context.Background(), fixedNow))

	rs := NewReminderScheduler(mem, logger, "")
	got, err := rs.RunOnce(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Created)

	got, err = rs.RunOnce(context.Background(), fixedNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, got.Created)
	assert.Zero(t, got.Skipped)
}

func TestReminderScheduler_StartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()

	rs := NewReminderScheduler(store.NewMemory(), logger, "")
	require.NoError(t, rs.Start())
	assert.False(t, rs.NextRun().IsZero())
	rs.Stop()

	disabled := NewReminderScheduler(store.NewMemory(), logger, "")
	disabled.Enabled = false
	require.NoError(t, disabled.Start())
	assert.True(t, disabled.NextRun().IsZero())
	disabled.Stop()

	bad := NewReminderScheduler(store.NewMemory(), logger, "every day")
	assert.Error(t, bad.Start())
}
