package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcRequest/rpcResponse mirror rpc.Request/rpc.Response's wire shape
// without importing the daemon's internal package, the way an external
// tool like ucoind's shell scripts spoke the wire protocol directly.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// call issues a single JSON-RPC 2.0 request against addr and unmarshals the
// result into out (pass nil to discard it).
func call(addr, method string, params []interface{}, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	httpResp, err := client.Post("http://"+addr, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}

	return json.Unmarshal(resp.Result, out)
}
