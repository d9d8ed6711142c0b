package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fisaks/fieldhub/internal/config"
)

func testClient(t *testing.T, srv *httptest.Server, timeoutSec int) *JSONClient {
	t.Helper()
	c, err := NewJSONClient(&config.EndpointConfig{
		EndpointId: "ep1",
		BaseURL:    srv.URL + "/api/v1",
		Username:   "svc",
		Password:   "secret",
		TimeoutSec: timeoutSec,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetJSON(t *testing.T) {
	var gotPath, gotAccept string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"targetTemperature": 21.5, "power": true})
	}))
	defer srv.Close()

	doc, err := testClient(t, srv, 5).GetJSON(context.Background(), "param")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/v1/param" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotUser != "svc" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if doc["targetTemperature"] != 21.5 {
		t.Errorf("doc = %v", doc)
	}
}

func TestPutJSONEcho(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	doc, err := testClient(t, srv, 5).PutJSON(context.Background(), "param/targetTemperature",
		map[string]any{"value": 21.5})
	if err != nil {
		t.Fatal(err)
	}
	if doc["value"] != 21.5 {
		t.Errorf("echo = %v", doc)
	}
}

func TestErrorStatusIsProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 5).GetJSON(context.Background(), "param")
	if KindOf(err) != KindProtocol {
		t.Errorf("err = %v, want KindProtocol", err)
	}
}

func TestWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 5).GetJSON(context.Background(), "param")
	if KindOf(err) != KindContentType {
		t.Errorf("err = %v, want KindContentType", err)
	}
}

func TestBrokenJSONBodyIsDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"targetTemperature": `))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 5).GetJSON(context.Background(), "param")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if KindOf(err) != 0 {
		t.Errorf("decode failure must not be a transport error: %v", err)
	}
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

	c, err := NewJSONClient(&config.EndpointConfig{
		EndpointId: "ep1", BaseURL: srv.URL, TimeoutSec: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Shrink the effective timeout below the configured floor.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.GetJSON(ctx, "param")
	if KindOf(err) != KindTimeout {
		t.Errorf("err = %v, want KindTimeout", err)
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	_, err := testClient(t, srv, 1).GetJSON(context.Background(), "param")
	if KindOf(err) != KindConnection {
		t.Errorf("err = %v, want KindConnection", err)
	}
}
