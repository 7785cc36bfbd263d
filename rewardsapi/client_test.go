package rewardsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndDecrypt(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/rewards":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			dec := json.NewDecoder(r.Body)
			dec.UseNumber()
			require.NoError(t, dec.Decode(&got))
			_, _ = w.Write([]byte(`{"id": 7, "name": "a", "encryptedValue": "vault:v1:aGVsbG8"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/rewards/decrypt/7":
			_, _ = w.Write([]byte(`{"id": 7, "name": "a", "value": 42.00}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/rewards/", time.Second)
	assert.Equal(t, srv.URL+"/api/rewards", c.BaseURL())

	created, err := c.Create(context.Background(), "id_same_0", "42.00")
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "vault:v1:aGVsbG8", created.Ciphertext)
	assert.Greater(t, int64(created.Latency), int64(0))
	assert.Equal(t, "id_same_0", got["name"])
	assert.Equal(t, json.Number("42.00"), got["value"])

	dec, err := c.Decrypt(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "42.00", dec.Value)
	assert.Greater(t, int64(dec.Latency), int64(0))
}

func TestDecryptAcceptsStringValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value": " 13.5 "}`))
	}))
	defer srv.Close()

	dec, err := New(srv.URL, time.Second).Decrypt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "13.5", dec.Value)
}

func TestNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "vault sealed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Create(context.Background(), "x", "1.00")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceFailure))

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindStatus, se.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "create", se.Op)
	assert.Contains(t, se.Error(), "vault sealed")
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, 50*time.Millisecond).Decrypt(context.Background(), 3)
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindTimeout, se.Kind)
	assert.Equal(t, srv.URL+"/decrypt/3", se.Endpoint)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Create(context.Background(), "x", "1.00")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindTransport, se.Kind)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Create(context.Background(), "x", "1.00")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindResponse, se.Kind)
}

func TestInvalidValueRejectedBeforeSending(t *testing.T) {
	_, err := New("http://127.0.0.1:1", time.Second).Create(context.Background(), "x", "not-a-number")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrServiceFailure))
	var se *Error
	assert.False(t, errors.As(err, &se))
}
