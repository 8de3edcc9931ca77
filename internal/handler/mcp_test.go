package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/checkout"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/envelope"
	"ucp-merchant/internal/model"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

// setMCPHeaders sets the required headers for MCP Streamable HTTP requests.
func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) []byte {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: "))
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body)
}

// initMCPSession initializes an MCP session and returns the session ID.
func initMCPSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2026-01-11",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}

// callTool invokes one MCP tool and returns the parsed tool result.
func callTool(t *testing.T, mux *http.ServeMux, sessionID, name string, args interface{}) callToolResult {
	t.Helper()

	rawArgs, _ := json.Marshal(args)
	callReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params: toolCallParams{
			Name:      name,
			Arguments: rawArgs,
		},
	}

	body, _ := json.Marshal(callReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, sessionID)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	// MCP returns 200 OK even for tool errors, error is in the result
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(parseSSEResponse(w.Body.String()), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected JSON-RPC error: %+v", resp.Error)
	}

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse tool result: %v", err)
	}
	return result
}

func toolText(t *testing.T, result callToolResult) string {
	t.Helper()
	if len(result.Content) == 0 || result.Content[0].Type != "text" {
		t.Fatalf("tool result has no text content: %+v", result)
	}
	return result.Content[0].Text
}

func TestMCPServerCreation(t *testing.T) {
	h, _ := testHandler(&checkout.Mock{})

	if h.NewMCPServer() == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	if h.NewMCPHandler() == nil {
		t.Fatal("NewMCPHandler returned nil")
	}
}

func TestMCPToolsList(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{})
	sessionID := initMCPSession(t, mux)

	listReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/list",
	}

	body, _ := json.Marshal(listReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, sessionID)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(parseSSEResponse(w.Body.String()), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}

	var toolsResult struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolsResult); err != nil {
		t.Fatalf("Failed to parse tools result: %v", err)
	}

	expected := map[string]bool{
		"create_checkout":     false,
		"get_checkout":        false,
		"update_checkout":     false,
		"complete_checkout":   false,
		"cancel_checkout":     false,
		"get_profile":         false,
		"search_products":     false,
		"get_product":         false,
		"get_compliance_info": false,
	}
	for _, tool := range toolsResult.Tools {
		if _, ok := expected[tool.Name]; ok {
			expected[tool.Name] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPCreateCheckout(t *testing.T) {
	mock := &checkout.Mock{
		CreateFunc: func(ctx context.Context, req *model.CreateCheckoutRequest, active []string) (*model.Checkout, error) {
			return sessionFixture("checkout_mcp"), nil
		},
	}
	_, mux := testHandler(mock)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "create_checkout", map[string]interface{}{
		"checkout": map[string]interface{}{
			"line_items": []map[string]interface{}{
				{"item": map[string]string{"id": "glenmor-12"}, "quantity": 1},
			},
		},
	})

	if result.IsError {
		t.Fatalf("Expected success, got error: %s", toolText(t, result))
	}

	var session model.Checkout
	if err := json.Unmarshal([]byte(toolText(t, result)), &session); err != nil {
		t.Fatalf("Failed to parse checkout from result: %v", err)
	}
	if session.ID != "checkout_mcp" {
		t.Errorf("ID = %s, want checkout_mcp", session.ID)
	}
}

func TestMCPGetCheckoutNotFound(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{}) // unset GetFunc returns not found
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_checkout", map[string]interface{}{
		"id": "checkout_missing",
	})

	if !result.IsError {
		t.Fatal("Expected tool error for missing checkout")
	}

	// Tool errors carry the same error body as REST responses.
	var resp errorResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("Failed to parse error body: %v", err)
	}
	if resp.Error.Code != model.CodeNotFound {
		t.Errorf("code = %s, want %s", resp.Error.Code, model.CodeNotFound)
	}
}

func TestMCPCompleteCheckout(t *testing.T) {
	mock := &checkout.Mock{
		CompleteFunc: func(ctx context.Context, id string, req *model.CompleteCheckoutRequest, active []string) (*model.Checkout, error) {
			s := sessionFixture(id)
			s.Status = model.StatusCompleted
			s.Order = &model.Order{ID: "order_12345678", Status: "confirmed"}
			return s, nil
		},
	}
	_, mux := testHandler(mock)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "complete_checkout", map[string]interface{}{
		"id": "checkout_abc",
		"checkout": map[string]interface{}{
			"payment": map[string]interface{}{
				"instruments": []map[string]interface{}{
					{
						"id":         "in_1",
						"handler_id": "dev.ucp.payment.simulated",
						"type":       "card",
						"selected":   true,
						"credential": map[string]string{"type": "token", "token": "tok_test"},
					},
				},
			},
		},
	})

	if result.IsError {
		t.Fatalf("Expected success, got error: %s", toolText(t, result))
	}

	var session model.Checkout
	json.Unmarshal([]byte(toolText(t, result)), &session)
	if session.Status != model.StatusCompleted {
		t.Errorf("Status = %s, want %s", session.Status, model.StatusCompleted)
	}
	if session.Order == nil || session.Order.Status != "confirmed" {
		t.Errorf("Order = %+v, want confirmed", session.Order)
	}
}

func TestMCPGetProfile(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{})
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_profile", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", toolText(t, result))
	}

	var profile model.DiscoveryProfile
	if err := json.Unmarshal([]byte(toolText(t, result)), &profile); err != nil {
		t.Fatalf("Failed to parse profile: %v", err)
	}
	if profile.UCP.Version != model.Version {
		t.Errorf("Version = %s, want %s", profile.UCP.Version, model.Version)
	}
}

func TestMCPSearchProducts(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{})
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "search_products", map[string]interface{}{
		"query": "gin",
	})
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", toolText(t, result))
	}

	var out SearchProductsOutput
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("Failed to parse products: %v", err)
	}
	if len(out.Products) == 0 {
		t.Error("Expected gin matches in the demo catalog")
	}
}

func TestMCPGetProductUnknown(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{})
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_product", map[string]interface{}{
		"id": "no-such-product",
	})
	if !result.IsError {
		t.Fatal("Expected tool error for unknown product")
	}
}

func TestMCPGetComplianceInfo(t *testing.T) {
	_, mux := testHandler(&checkout.Mock{})
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_compliance_info", map[string]interface{}{
		"market": "US",
	})
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", toolText(t, result))
	}

	var info ComplianceInfoOutput
	if err := json.Unmarshal([]byte(toolText(t, result)), &info); err != nil {
		t.Fatalf("Failed to parse compliance info: %v", err)
	}
	if info.MinimumAge != 21 {
		t.Errorf("MinimumAge = %d, want 21", info.MinimumAge)
	}
	if info.Restricted {
		t.Error("Restricted = true for US, want false")
	}
}

// TestTransportParity drives one engine through both transports and checks
// that REST and MCP callers observe the same state and the same error codes.
func TestTransportParity(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := checkout.NewEngine(
		checkout.NewMemoryStore(),
		catalog.NewStatic(catalog.DemoProducts()),
		compliance.New(compliance.DefaultRules()),
		nil,
		checkout.Config{BaseURL: "https://shop.example"},
		logger,
	)
	h := New(
		engine,
		testProfile(),
		envelope.NewBuilder(model.Version),
		nil,
		catalog.NewStatic(catalog.DemoProducts()),
		compliance.New(compliance.DefaultRules()),
		logger,
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	sessionID := initMCPSession(t, mux)

	// Create via REST.
	body := `{"line_items":[{"item":{"id":"glenmor-12"},"quantity":2}]}`
	req := httptest.NewRequest("POST", "/checkout-sessions", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create Status = %d: %s", w.Code, w.Body.String())
	}
	var created model.Checkout
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding REST create: %v", err)
	}

	// Read back via MCP: same session, same derived state.
	result := callTool(t, mux, sessionID, "get_checkout", map[string]interface{}{
		"id": created.ID,
	})
	if result.IsError {
		t.Fatalf("MCP get errored: %s", toolText(t, result))
	}
	var fetched model.Checkout
	if err := json.Unmarshal([]byte(toolText(t, result)), &fetched); err != nil {
		t.Fatalf("decoding MCP get: %v", err)
	}
	if fetched.ID != created.ID || fetched.Status != created.Status {
		t.Errorf("MCP view = %s/%s, REST view = %s/%s",
			fetched.ID, fetched.Status, created.ID, created.Status)
	}
	if len(fetched.Totals) != len(created.Totals) {
		t.Errorf("totals diverge across transports: %d vs %d",
			len(fetched.Totals), len(created.Totals))
	}

	// A missing session yields the same error code on both transports.
	req = httptest.NewRequest("GET", "/checkout-sessions/checkout_missing", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var restErr errorResponse
	json.Unmarshal(w.Body.Bytes(), &restErr)

	result = callTool(t, mux, sessionID, "get_checkout", map[string]interface{}{
		"id": "checkout_missing",
	})
	if !result.IsError {
		t.Fatal("MCP get of missing session succeeded, want error")
	}
	var mcpErr errorResponse
	json.Unmarshal([]byte(toolText(t, result)), &mcpErr)

	if restErr.Error.Code != model.CodeNotFound || mcpErr.Error.Code != restErr.Error.Code {
		t.Errorf("error codes diverge: REST %s, MCP %s", restErr.Error.Code, mcpErr.Error.Code)
	}
}
