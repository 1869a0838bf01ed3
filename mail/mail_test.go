package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendGrid_Send(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGrid(Config{APIKey: "sg-key", From: "from@example.com", BaseURL: srv.URL})
	err := s.Send(context.Background(), Message{To: "to@example.com", Subject: "New Ostrich Listings: Easton", HTML: "<h1>x</h1>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer sg-key" {
		t.Errorf("auth header = %q", auth)
	}
	if got.From.Email != "from@example.com" || got.Personalizations[0].To[0].Email != "to@example.com" {
		t.Errorf("addresses = %+v", got)
	}
	if got.Content[0].Type != "text/html" || got.Content[0].Value != "<h1>x</h1>" {
		t.Errorf("content = %+v", got.Content)
	}
}

func TestSendGrid_ErrorIsDispatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad from"}]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSendGrid(Config{APIKey: "k", From: "f@example.com", BaseURL: srv.URL})
	err := s.Send(context.Background(), Message{To: "t@example.com", Subject: "s"})
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.To != "t@example.com" || !strings.Contains(de.Error(), "400") {
		t.Errorf("dispatch error = %v", de)
	}
}

func TestWriter(t *testing.T) {
	var b strings.Builder
	if err := (Writer{Out: &b}).Send(context.Background(), Message{To: "a", Subject: "b", HTML: "c"}); err != nil {
		t.Fatal(err)
	}
	if b.String() != "To: a\nSubject: b\n\nc\n" {
		t.Errorf("output = %q", b.String())
	}
}
