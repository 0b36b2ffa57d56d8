package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore-console/internal/shared"
)

func TestAuditSinkPostsEntryWithTimestamp(t *testing.T) {
	var got auditEntryDTO
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/audit-logs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	sink := NewAuditSink(NewClient(srv.URL, time.Second, nil))

	err := sink.Record(context.Background(), shared.AuditLog{
		ActorID:  7,
		Action:   "role.delete",
		Entity:   "role",
		EntityID: "3",
		Meta:     map[string]any{"name": "viewer"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.EqualValues(t, 7, got.ActorID)
	assert.Equal(t, "role.delete", got.Action)
	assert.Equal(t, "3", got.EntityID)
	assert.False(t, got.OccurredAt.IsZero(), "an unset timestamp must be defaulted before leaving the process")
	assert.WithinDuration(t, time.Now(), got.OccurredAt, time.Minute)
}

func TestAuditSinkRejectsIncompleteEntries(t *testing.T) {
	sink := NewAuditSink(NewClient("http://127.0.0.1:1", time.Second, nil))

	err := sink.Record(context.Background(), shared.AuditLog{Entity: "role", EntityID: "3"})
	require.Error(t, err)
}

func TestAuditSinkFailureSurfacesUpdateFailed(t *testing.T) {
	sink := NewAuditSink(NewClient("http://127.0.0.1:1", 100*time.Millisecond, nil))

	err := sink.Record(context.Background(), shared.AuditLog{Action: "role.delete", Entity: "role", EntityID: "3"})
	require.ErrorIs(t, err, shared.ErrUpdateFailed)
}
