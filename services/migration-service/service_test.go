package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-db-migrater/sdk/errs"
)

func TestMigrationInValidate(t *testing.T) {
	valid := MigrationIn{Name: "m1", ConnString: "postgresql://u:p@h/db", DBSource: "source-1"}
	assert.NoError(t, valid.validate())

	for _, in := range []MigrationIn{
		{ConnString: "postgresql://u:p@h/db", DBSource: "source-1"},
		{Name: "m1", DBSource: "source-1"},
		{Name: "m1", ConnString: "postgresql://u:p@h/db"},
	} {
		err := in.validate()
		assert.ErrorIs(t, err, errs.ErrInvalidMigrationRequest)
	}
}

func TestDBPaths(t *testing.T) {
	paths := dbPaths("source-1.public", "source-1", map[string]struct{}{
		"order_hub":    {},
		"customer_hub": {},
	})
	assert.Equal(t, []string{"public.customer_hub", "public.order_hub"}, paths)
}

func TestMigrationTaskDecode(t *testing.T) {
	body := `{
		"name": "nightly sync",
		"conn_string": "postgresql://u:p@h/db",
		"object_name": "customer",
		"object_db_path": "7f6a9f2e.public.customer",
		"migration_pattern": {"pk_pattern": "hash_key", "fk_pattern": "^(?:id)?(\\w*)_hash_fkey$"},
		"source_guid": "7f6a9f2e-9a21-4c39-8f05-2f1f9cb1a111",
		"sync_type": "full",
		"identity_id": "user-7",
		"model": "vault"
	}`
	var task migrationTask
	require.NoError(t, json.Unmarshal([]byte(body), &task))
	assert.Equal(t, "nightly sync", task.Name)
	assert.Equal(t, "7f6a9f2e-9a21-4c39-8f05-2f1f9cb1a111", task.SourceGUID)
	assert.Equal(t, "full", task.SyncType)
	assert.Equal(t, "7f6a9f2e.public.customer", task.ObjectDBPath)
	assert.Equal(t, "hash_key", task.MigrationPattern.PKPattern)

	// Missing pattern keys compile to the defaults.
	cp, err := task.MigrationPattern.Compile()
	require.NoError(t, err)
	assert.True(t, cp.FKTable.MatchString("customer_sat"))
}

func TestMigrationResultEnvelope(t *testing.T) {
	result := migrationResult{
		Status:      statusFailure,
		correlation: correlation{SourceGUID: "guid-1", Model: "vault"},
	}
	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "failure", "source_guid": "guid-1", "model": "vault"}`, string(body))
}

func TestRenderErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.ErrMigrationNotFound, http.StatusNotFound},
		{errs.ErrInvalidMigrationRequest, http.StatusBadRequest},
		{errs.ErrUnsupportedBackend, http.StatusBadRequest},
		{errs.GraphUnavailable(assert.AnError), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/migrations/", nil)
		renderError(rec, req, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestPing(t *testing.T) {
	svc := &Service{}
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
