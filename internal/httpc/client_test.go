package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"preset":"TechnoDolly","ticks":7}`))
	}))
	defer srv.Close()

	var out struct {
		Preset string `json:"preset"`
		Ticks  int    `json:"ticks"`
	}
	require.NoError(t, GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "TechnoDolly", out.Preset)
	assert.Equal(t, 7, out.Ticks)
}

func TestPutJSON_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, PutJSON(context.Background(), srv.URL, map[string]bool{"live": true}, nil))
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown crane model"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), srv.URL, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Body, "unknown crane model")
}
