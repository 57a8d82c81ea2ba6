package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(RoomsCreated)
	su.Run()
	defer su.Stop()

	su.Incr(RoomsCreated)
	su.Incr(RoomsCreated)
	// unregistered metrics are dropped, not created
	su.Incr("Unregistered")

	assert.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var data map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&data))

		count, ok := data[RoomsCreated].(float64)
		_, unregistered := data["Unregistered"]
		return ok && count == 2 && !unregistered
	}, time.Second, 10*time.Millisecond)
}
