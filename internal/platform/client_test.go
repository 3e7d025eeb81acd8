package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_CreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sessions" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if body["session_id"] != "sess-1" || body["customer_phone"] != "+15550001" {
			t.Errorf("Unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(Session{SessionID: "sess-1", IsActive: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	session, err := client.CreateSession(context.Background(), "sess-1", "+15550001")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.SessionID != "sess-1" || !session.IsActive {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestClient_CreateSessionOmitsEmptyFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["session_id"]; ok {
			t.Error("Empty session_id must be omitted so the engine generates one")
		}
		json.NewEncoder(w).Encode(Session{SessionID: "generated-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	session, err := client.CreateSession(context.Background(), "", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.SessionID != "generated-1" {
		t.Errorf("Expected the engine-generated id, got %s", session.SessionID)
	}
}

func TestClient_FetchVoiceToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/token" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(VoiceToken{Token: "tok-1", RoomURL: "wss://media.example", SessionID: "sess-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	token, err := client.FetchVoiceToken(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("FetchVoiceToken failed: %v", err)
	}
	if token.Token != "tok-1" || token.RoomURL != "wss://media.example" {
		t.Errorf("Unexpected token: %+v", token)
	}
}

func TestClient_DeleteSession(t *testing.T) {
	deleted := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		deleted <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if err := client.DeleteSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if path := <-deleted; path != "/sessions/sess-1" {
		t.Errorf("Unexpected path: %s", path)
	}
}

func TestClient_ErrorIncludesBodySnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"engine overloaded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.FetchHealth(context.Background())
	if err == nil {
		t.Fatal("Expected an error on 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "engine overloaded") {
		t.Errorf("Error must carry status and body snippet: %v", err)
	}
}
