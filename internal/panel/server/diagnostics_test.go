package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ohdear-panel/pkg/database"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diagnosticsRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestSlowQueriesRoute(t *testing.T) {
	db, err := database.New(database.Config{Driver: "sqlite", Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	monitor, err := database.NewQueryMonitor(db, logger.NewNop(), time.Nanosecond)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(&diagnosticsRow{}))
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&diagnosticsRow{Name: fmt.Sprintf("row-%d", i)}).Error)
	}

	host, engine := newHost(t)
	registerDiagnostics(host, monitor)
	path := "/admin/" + SlowQueriesPath

	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodGet, path, "viewer", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, path+"?limit=zero", "admin", "").Code)

	w := do(engine, http.MethodGet, path+"?limit=2", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Queries []database.SlowQueryInfo `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Queries, 2)
	assert.Contains(t, resp.Queries[1].Query, "INSERT")
}
