package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMakeCall(t *testing.T) {
	var gotForm map[string][]string
	var user, pass string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC1/Calls.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"queued","to":"+573001234567"}`))
	}))
	defer ts.Close()

	c, err := New(Config{AccountSID: "AC1", AuthToken: "tok", BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	call, err := c.MakeCall(context.Background(), MakeCallParams{
		To:                  "+573001234567",
		From:                "+15550001111",
		URL:                 "https://calls.example.com/voice/incoming?instruction_ref=r1",
		StatusCallback:      "https://calls.example.com/voice/status",
		StatusCallbackEvent: []string{"initiated", "completed"},
		Timeout:             30,
	})
	if err != nil {
		t.Fatalf("MakeCall() error = %v", err)
	}
	if call.SID != "CA123" || call.Status != "queued" {
		t.Fatalf("call = %+v", call)
	}
	if user != "AC1" || pass != "tok" {
		t.Fatalf("basic auth = %q/%q", user, pass)
	}
	if gotForm["Url"][0] != "https://calls.example.com/voice/incoming?instruction_ref=r1" {
		t.Fatalf("Url = %v", gotForm["Url"])
	}
	if len(gotForm["StatusCallbackEvent"]) != 2 || gotForm["Timeout"][0] != "30" {
		t.Fatalf("form = %v", gotForm)
	}
}

func TestMakeCallAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	}))
	defer ts.Close()

	c, _ := New(Config{AccountSID: "AC1", AuthToken: "tok", BaseURL: ts.URL})
	_, err := c.MakeCall(context.Background(), MakeCallParams{To: "x", From: "y", URL: "z"})
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != 21211 {
		t.Fatalf("MakeCall() error = %v, want twilio Error 21211", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{AuthToken: "t"}); err == nil {
		t.Fatalf("New() without account sid should fail")
	}
	if _, err := New(Config{AccountSID: "a"}); err == nil {
		t.Fatalf("New() without auth token should fail")
	}
}
