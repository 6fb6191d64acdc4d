// Package nodeagent is the operator side of a running stealthd: it probes
// the daemon over JSON-RPC and checks a local installation for readiness.
package nodeagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shadowvest/go-backend/internal/app"
)

const defaultRPCProbeTimeout = 2 * time.Second

// RPCError is a JSON-RPC error object returned by the daemon.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type Status struct {
	Health    string             `json:"health"`
	Service   *app.ServiceStatus `json:"service,omitempty"`
	CheckedAt time.Time          `json:"checked_at"`
	LastError string             `json:"last_error,omitempty"`
}

type Service struct {
	client *http.Client
	now    func() time.Time
}

func New() *Service {
	return &Service{
		client: &http.Client{Timeout: defaultRPCProbeTimeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Status asks the daemon for service.status. An unreachable daemon is a
// status, not an error.
func (s *Service) Status(ctx context.Context, rpcAddr, rpcToken string) Status {
	out := Status{Health: "unreachable", CheckedAt: s.now()}
	var st app.ServiceStatus
	if err := s.Call(ctx, rpcAddr, rpcToken, "service.status", nil, &st); err != nil {
		out.LastError = err.Error()
		return out
	}
	out.Service = &st
	switch {
	case st.KeystoreConfigured && !st.Unlocked:
		out.Health = "locked"
	default:
		out.Health = "ok"
	}
	return out
}

// Call performs one JSON-RPC request against http://rpcAddr/rpc and decodes
// the result into out when out is non-nil.
func (s *Service) Call(ctx context.Context, rpcAddr, rpcToken, method string, params, out any) (retErr error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, defaultRPCProbeTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL(rpcAddr), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("rpc returned no result")
	}
	return json.Unmarshal(decoded.Result, out)
}

func rpcURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + "/rpc"
}
