package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractRPCToken_PrefersCustomHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/rpc", nil)
	req.Header.Set(rpcTokenHeader, "header-token")
	req.Header.Set("Authorization", "Bearer bearer-token")

	s := &Server{}
	if got := s.extractRPCToken(req); got != "header-token" {
		t.Fatalf("expected header token, got %q", got)
	}
}

func TestExtractRPCToken_UsesBearerHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/rpc", nil)
	req.Header.Set("Authorization", "Bearer bearer-token")

	s := &Server{}
	if got := s.extractRPCToken(req); got != "bearer-token" {
		t.Fatalf("expected bearer token, got %q", got)
	}
}

func TestAuthorizeRPC_FailsClosedWithoutConfiguredToken(t *testing.T) {
	s := &Server{requireRPC: true}
	req := httptest.NewRequest("POST", "/rpc", nil)
	rec := httptest.NewRecorder()
	if s.authorizeRPC(rec, req) {
		t.Fatal("required auth with no token configured must reject")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestApplyCORS_RejectsRemoteOrigin(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	if s.applyCORS(rec, req) {
		t.Fatal("remote origin must be rejected")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	if !s.applyCORS(rec, req) {
		t.Fatal("loopback origin must be allowed")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatal("allowed origin must be echoed")
	}
}

func TestRateLimitKey_HashesToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/rpc", nil)
	req.RemoteAddr = "10.0.0.5:4444"
	if got := rpcRateLimitKey(req, ""); got != "ip:10.0.0.5" {
		t.Fatalf("ip key = %q", got)
	}
	got := rpcRateLimitKey(req, "secret-token")
	if got == "token:secret-token" || len(got) != len("token:")+16 {
		t.Fatalf("token key must be a short hash, got %q", got)
	}
}
