package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAuthServer(t *testing.T) (*httptest.Server, *Ticketer) {
	t.Helper()
	tk, err := NewTicketer("bi-mat", time.Minute)
	if err != nil {
		t.Fatalf("new ticketer: %v", err)
	}
	mux := http.NewServeMux()
	NewHTTPHandler(NewManager(), tk).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, tk
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHTTP_RegisterThenTicket(t *testing.T) {
	srv, tk := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/api/auth/register", "", credentialsRequest{Username: "co_ba", Password: "matkhau1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d, want 200", resp.StatusCode)
	}
	var reg sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if reg.Chips != StartingChips || reg.DisplayName != "co_ba" {
		t.Fatalf("register response = %+v", reg)
	}

	resp = postJSON(t, srv.URL+"/api/auth/ticket", reg.SessionToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ticket status = %d, want 200", resp.StatusCode)
	}
	var tr ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	accountID, username, err := tk.Parse(tr.Ticket)
	if err != nil {
		t.Fatalf("parse issued ticket: %v", err)
	}
	if accountID != reg.ID || username != "co_ba" {
		t.Fatalf("ticket identity = (%d, %q), want (%d, co_ba)", accountID, username, reg.ID)
	}
	if tr.ExpiresIn != 60 {
		t.Fatalf("expires_in = %d, want 60", tr.ExpiresIn)
	}
}

func TestHTTP_TicketRequiresSession(t *testing.T) {
	srv, _ := newAuthServer(t)
	if resp := postJSON(t, srv.URL+"/api/auth/ticket", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/api/auth/ticket", "bogus", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func getMe(t *testing.T, url, token string) (Account, int) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()
	var acct Account
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
			t.Fatalf("decode me: %v", err)
		}
	}
	return acct, resp.StatusCode
}

func TestHTTP_GuestRenameThenMe(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/api/auth/guest", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("guest status = %d, want 200", resp.StatusCode)
	}
	var g sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("decode guest: %v", err)
	}
	if !g.Guest || g.SessionToken == "" {
		t.Fatalf("guest response = %+v", g)
	}

	if resp := postJSON(t, srv.URL+"/api/auth/profile", g.SessionToken, profileRequest{DisplayName: "  "}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank rename status = %d, want 400", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/api/auth/profile", g.SessionToken, profileRequest{DisplayName: "Anh Bảy"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d, want 200", resp.StatusCode)
	}

	me, code := getMe(t, srv.URL, g.SessionToken)
	if code != http.StatusOK {
		t.Fatalf("me status = %d", code)
	}
	if me.ID != g.ID || me.DisplayName != "Anh Bảy" || me.Chips != StartingChips {
		t.Fatalf("me = %+v", me)
	}
	if _, code := getMe(t, srv.URL, "bogus"); code != http.StatusUnauthorized {
		t.Fatalf("bogus me status = %d, want 401", code)
	}
}
