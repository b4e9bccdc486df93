package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/cohort-metrics/internal/application/command"
	"github.com/alem-hub/cohort-metrics/internal/application/query"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions := sqlite.NewSessionRepository(store)
	objectives := sqlite.NewObjectiveRepository(store)
	centers := sqlite.NewCenterRepository(store)

	return NewServer(DefaultConfig(), Dependencies{
		Engine:         query.NewEngine(sessions, objectives, centers),
		ListSessions:   query.NewListSessionsHandler(sessions),
		RecordSession:  command.NewRecordSessionHandler(sessions, nil, nil),
		SetObjective:   command.NewSetObjectiveHandler(objectives, nil),
		RegisterCenter: command.NewRegisterCenterHandler(centers, nil),
		RemoveCenter:   command.NewRemoveCenterHandler(centers, nil, nil),
	})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func seedLyon(t *testing.T, s *Server) {
	t.Helper()

	rec := do(t, s, http.MethodPut, "/api/v1/centers", CenterRequest{ID: "lyon-1", Name: "Lyon Part-Dieu", PostalCode: "69003"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPut, "/api/v1/objectives", ObjectiveRequest{CenterID: "lyon-1", Year: 2024, TargetValue: 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, body := range []map[string]any{
		{"track": "prepa", "stage": "info_collective", "date": "2024-01-10", "center_id": "lyon-1",
			"places_opened": 12, "prescriptions": 10, "present": 6, "adhesions": 5},
		{"track": "prepa", "stage": "workshop_1", "date": "2024-02-10", "center_id": "lyon-1",
			"enrolled": 8, "present": 5},
		{"track": "prepa", "stage": "workshop_6", "date": "10/06/2024", "center_id": "lyon-1",
			"enrolled": 5, "present": 4},
	} {
		rec = do(t, s, http.MethodPut, "/api/v1/sessions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestReadParameterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown track", "/api/v1/tracks/bootcamp/synthese"},
		{"non numeric year", "/api/v1/tracks/prepa/synthese?year=last"},
		{"year out of range", "/api/v1/tracks/prepa/centers/lyon-1/attainment?year=1999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			env := decode[ErrorEnvelope](t, rec)
			assert.Equal(t, codeValidation, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestAttainmentEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/centers/lyon-1/attainment?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[query.AttainmentResult](t, rec)
	assert.Equal(t, "lyon-1", res.CenterID)
	assert.Equal(t, 20, res.Target)
	assert.True(t, res.ObjectiveConfigured)
	assert.Equal(t, 15, res.Realized)
	assert.Equal(t, 75.0, res.TauxAtteinte)
	assert.Equal(t, 5, res.ResteAFaire)
}

func TestSyntheseEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	t.Run("center", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/synthese?year=2024&center=lyon-1", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		out := decode[map[string]any](t, rec)
		for _, key := range []string{
			query.KeyCenter, query.KeyAnnee, query.KeyObjectif, query.KeyRealise,
			query.KeyTauxPrescription, query.KeyTauxPresence, query.KeyTauxAdhesion,
			query.KeyTauxAtteinte, query.KeyTauxRetention, query.KeyResteAFaire,
		} {
			assert.Contains(t, out, key)
		}
		assert.Len(t, out, 10)
		assert.Equal(t, 80.0, out[query.KeyTauxRetention])
	})

	t.Run("global", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/synthese?year=2024", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		out := decode[map[string]any](t, rec)
		assert.Equal(t, 20.0, out[query.KeyObjectifTotal])
		assert.Equal(t, 15.0, out[query.KeyRealiseTotal])
		assert.Equal(t, map[string]any{"lyon-1": 5.0}, out[query.KeyParCentre])
		assert.Equal(t, map[string]any{"69": 5.0}, out[query.KeyParDepartement])
	})

	t.Run("empty center is global", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/synthese?year=2024&center=", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		out := decode[map[string]any](t, rec)
		assert.Equal(t, 20.0, out[query.KeyObjectifTotal])
		assert.NotContains(t, out, query.KeyCenter)
	})

	t.Run("unknown center bucket", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/synthese?year=2024&center=_", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		out := decode[map[string]any](t, rec)
		assert.Equal(t, "", out[query.KeyCenter])
		assert.Equal(t, 0.0, out[query.KeyRealise])
	})
}

func TestListSessionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/tracks/prepa/centers/lyon-1/sessions?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[query.ListSessionsResult](t, rec)
	require.Len(t, res.Sessions, 3)
	assert.Equal(t, "info_collective", res.Sessions[0].Stage)
	assert.Equal(t, "2024-06-10", res.Sessions[2].Date)
}

func TestRecordSessionReplacesAndRecomputesAbsent(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	body := map[string]any{
		"id": "fixed-id", "track": "prepa", "stage": "workshop_2", "date": "2024-03-01",
		"center_id": "lyon-1", "enrolled": 7, "present": 3, "absent": 99,
	}
	rec := do(t, s, http.MethodPut, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[query.SessionDTO](t, rec)
	assert.Equal(t, "fixed-id", created.ID)
	assert.Equal(t, 4, created.Absent)

	body["present"] = 7
	rec = do(t, s, http.MethodPut, "/api/v1/sessions", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decode[query.SessionDTO](t, rec).Absent)
}

func TestRecordSessionErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed body", "not an object", http.StatusBadRequest, codeValidation},
		{"bad date", map[string]any{"track": "prepa", "stage": "workshop_1", "date": "tomorrow"},
			http.StatusBadRequest, codeValidation},
		{"stage outside track", map[string]any{"track": "ateliers", "stage": "info_collective", "date": "2024-01-01"},
			http.StatusBadRequest, codeValidation},
		{"negative count", map[string]any{"track": "prepa", "stage": "workshop_1", "date": "2024-01-01", "present": -1},
			http.StatusBadRequest, codeValidation},
		{"unregistered center", map[string]any{"track": "prepa", "stage": "workshop_1", "date": "2024-01-01", "center_id": "ghost"},
			http.StatusNotFound, codeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPut, "/api/v1/sessions", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorEnvelope](t, rec).Error.Code)
		})
	}
}

func TestSetObjectiveReportsPreviousTarget(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	rec := do(t, s, http.MethodPut, "/api/v1/objectives", ObjectiveRequest{CenterID: "lyon-1", Year: 2024, TargetValue: 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[map[string]any](t, rec)
	assert.Equal(t, 20.0, out["previous_target"])
	assert.Equal(t, false, out["created"])

	rec = do(t, s, http.MethodGet, "/api/v1/tracks/prepa/centers/lyon-1/attainment?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, decode[query.AttainmentResult](t, rec).TauxAtteinte)
}

func TestSetObjectiveValidation(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/v1/objectives", ObjectiveRequest{CenterID: "lyon-1", Year: 2024, TargetValue: -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decode[ErrorEnvelope](t, rec)
	assert.Equal(t, codeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "TargetValue")
}

func TestRegisterCenterReturnsDepartment(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/v1/centers", CenterRequest{ID: "paris-11", PostalCode: "75011"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "75", decode[map[string]any](t, rec)["department"])
}

func TestRegisterCenterRejectsUnknownBucketID(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"_", " _ "} {
		rec := do(t, s, http.MethodPut, "/api/v1/centers", CenterRequest{ID: id, PostalCode: "69003"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, codeValidation, decode[ErrorEnvelope](t, rec).Error.Code)
	}
}

func TestRemoveCenter(t *testing.T) {
	s := newTestServer(t)
	seedLyon(t, s)

	rec := do(t, s, http.MethodDelete, "/api/v1/centers/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decode[ErrorEnvelope](t, rec).Error.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/centers/lyon-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Sessions survive under the unknown-center bucket.
	rec = do(t, s, http.MethodGet, "/api/v1/tracks/prepa/centers/_/attainment?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[query.AttainmentResult](t, rec)
	assert.Equal(t, 15, res.Realized)
	assert.False(t, res.ObjectiveConfigured)
}
