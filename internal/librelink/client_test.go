package librelink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req historyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Username != "ana" || req.Password != "pw" || req.ClientVersion != ClientVersion {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"history":[{"date":"2024-03-10T08:00:00","value":112},{"date":"2024-03-10T08:15:00","value":118}]}}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "ana", "pw", 5*time.Second).History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 || got[0].Date != "2024-03-10T08:00:00" || got[1].Value != 118 {
		t.Fatalf("history = %+v", got)
	}
}

func TestHistoryFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unsuccessful", http.StatusOK, `{"success":false,"message":"bad credentials"}`},
		{"missing history", http.StatusOK, `{"success":true,"data":{}}`},
		{"server error", http.StatusBadGateway, `upstream down`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewClient(srv.URL, "u", "p", 5*time.Second).History(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
