package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Middleware(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/things/{id}", "418"))
	assert.Equal(t, 2.0, got)
}

func TestMetrics_ForumObserver(t *testing.T) {
	m := New()

	m.ParticipantConnected()
	m.ParticipantConnected()
	m.RoomSize("Anxiety", 2)
	m.RoomSize("Sleep", 1)
	m.MessageSent("Anxiety", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.participants))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.roomSize.WithLabelValues("Anxiety")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries))

	m.RoomSize("Sleep", 0)
	m.ParticipantDisconnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.participants))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ParticipantConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mindhealer_forum_participants 1"))
}

func TestMetrics_Registry(t *testing.T) {
	m := New()
	m.RoomSize("Anxiety", 3)

	count, err := testutil.GatherAndCount(m.Registry(), "mindhealer_forum_room_members", "mindhealer_forum_rooms")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
	assert.Contains(t, names, "process_start_time_seconds")
}
