package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAndPrintCopiesServerBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bpv6_active_table_capacity 16\n"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, fetchAndPrint(&buf, srv.URL, time.Second))
	assert.Equal(t, "bpv6_active_table_capacity 16\n", buf.String())
}

func TestFetchAndPrintReportsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	err := fetchAndPrint(&buf, srv.URL, time.Second)
	assert.Error(t, err)
}
