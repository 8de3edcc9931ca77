// MCP transport handler using the official MCP Go SDK.
// Exposes checkout operations as MCP tools with the same semantics as
// the REST routes, plus catalog discovery tools for agents.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/model"
	"ucp-merchant/internal/negotiation"
)

// === MCP Meta Types ===
// Meta contains request metadata, mapping to the REST headers:
// - UCP-Agent header → meta["ucp-agent"]
// - Idempotency-Key header → meta["idempotency-key"]

// MCPMeta represents request metadata in MCP requests.
type MCPMeta struct {
	UCPAgent       *UCPAgentMeta `json:"ucp-agent,omitempty"`
	IdempotencyKey string        `json:"idempotency-key,omitempty"`
}

// UCPAgentMeta identifies the calling agent by its published profile.
type UCPAgentMeta struct {
	Profile string `json:"profile"`
}

// === MCP Tool Input Types ===
// Params structure is {meta, id?, checkout}:
// - meta: request metadata
// - id: resource identifier (required for get/update/complete/cancel)
// - checkout: domain payload (required for create/update/complete)

// CreateCheckoutInput is the input schema for create_checkout tool.
type CreateCheckoutInput struct {
	Meta     MCPMeta                     `json:"meta,omitempty" jsonschema:"request metadata"`
	Checkout model.CreateCheckoutRequest `json:"checkout" jsonschema:"checkout data,required"`
}

// GetCheckoutInput is the input schema for get_checkout tool.
type GetCheckoutInput struct {
	Meta MCPMeta `json:"meta,omitempty" jsonschema:"request metadata"`
	ID   string  `json:"id" jsonschema:"checkout ID,required"`
}

// UpdateCheckoutInput is the input schema for update_checkout tool.
// Present fields replace state wholesale, matching REST PUT semantics.
type UpdateCheckoutInput struct {
	Meta     MCPMeta                     `json:"meta,omitempty" jsonschema:"request metadata"`
	ID       string                      `json:"id" jsonschema:"checkout ID,required"`
	Checkout model.UpdateCheckoutRequest `json:"checkout" jsonschema:"checkout data,required"`
}

// CompleteCheckoutInput is the input schema for complete_checkout tool.
type CompleteCheckoutInput struct {
	Meta     MCPMeta                       `json:"meta,omitempty" jsonschema:"request metadata"`
	ID       string                        `json:"id" jsonschema:"checkout ID,required"`
	Checkout model.CompleteCheckoutRequest `json:"checkout" jsonschema:"checkout data,required"`
}

// CancelCheckoutInput is the input schema for cancel_checkout tool.
type CancelCheckoutInput struct {
	Meta MCPMeta `json:"meta,omitempty" jsonschema:"request metadata"`
	ID   string  `json:"id" jsonschema:"checkout ID,required"`
}

// GetProfileInput is the input schema for get_profile tool.
type GetProfileInput struct{}

// SearchProductsInput is the input schema for search_products tool.
type SearchProductsInput struct {
	Query    string `json:"query,omitempty" jsonschema:"free-text search over title and category"`
	Category string `json:"category,omitempty" jsonschema:"exact category filter"`
}

// SearchProductsOutput lists matching catalog products.
type SearchProductsOutput struct {
	Products []catalog.Product `json:"products"`
}

// GetProductInput is the input schema for get_product tool.
type GetProductInput struct {
	ID string `json:"id" jsonschema:"product ID,required"`
}

// GetComplianceInfoInput is the input schema for get_compliance_info tool.
type GetComplianceInfoInput struct {
	Market string `json:"market" jsonschema:"ISO 3166-1 alpha-2 market code,required"`
}

// ComplianceInfoOutput describes purchase rules for one market.
type ComplianceInfoOutput struct {
	Market     string `json:"market"`
	MinimumAge int    `json:"minimum_age"`
	Restricted bool   `json:"restricted"`
}

// NewMCPServer creates an MCP server with checkout tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ucp-merchant",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "UCP checkout for an age-restricted drinks merchant. " +
				"Use these tools to browse the catalog and create, update, and complete checkout sessions. " +
				"Orders require buyer email and a verified date of birth.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_checkout",
		Description: "Create a new checkout session from line items. Buyer and geo context are optional at creation.",
	}, h.mcpCreateCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_checkout",
		Description: "Get the current state of a checkout session.",
	}, h.mcpGetCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_checkout",
		Description: "Update a checkout session. Provided fields replace current values wholesale.",
	}, h.mcpUpdateCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_checkout",
		Description: "Complete a ready checkout session and place the order. Requires a payment instrument.",
	}, h.mcpCompleteCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_checkout",
		Description: "Cancel a checkout session. Completed sessions cannot be canceled.",
	}, h.mcpCancelCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_profile",
		Description: "Get the merchant's UCP discovery profile: services, capabilities, and payment handlers.",
	}, h.mcpGetProfile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_products",
		Description: "Search the product catalog by free-text query and/or category.",
	}, h.mcpSearchProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_product",
		Description: "Get one catalog product by ID.",
	}, h.mcpGetProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_compliance_info",
		Description: "Get the minimum purchase age and restriction status for a market.",
	}, h.mcpGetComplianceInfo)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpCreateCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateCheckoutInput,
) (*mcp.CallToolResult, *model.Checkout, error) {
	negotiated, errResult := h.mcpNegotiate(ctx, &input.Meta)
	if errResult != nil {
		return errResult, nil, nil
	}

	session, err := h.service.Create(ctx, &input.Checkout, activeNames(negotiated))
	if err != nil {
		return h.mcpError(err), nil, nil
	}

	return nil, h.envelope.Apply(session, negotiated), nil
}

func (h *Handler) mcpGetCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCheckoutInput,
) (*mcp.CallToolResult, *model.Checkout, error) {
	negotiated, errResult := h.mcpNegotiate(ctx, &input.Meta)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.ID == "" {
		return h.mcpError(model.NewInvalidRequestError("id", "checkout ID required")), nil, nil
	}

	session, err := h.service.Get(ctx, input.ID, activeNames(negotiated))
	if err != nil {
		return h.mcpError(err), nil, nil
	}

	return nil, h.envelope.Apply(session, negotiated), nil
}

func (h *Handler) mcpUpdateCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateCheckoutInput,
) (*mcp.CallToolResult, *model.Checkout, error) {
	negotiated, errResult := h.mcpNegotiate(ctx, &input.Meta)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.ID == "" {
		return h.mcpError(model.NewInvalidRequestError("id", "checkout ID required")), nil, nil
	}

	session, err := h.service.Update(ctx, input.ID, &input.Checkout, activeNames(negotiated))
	if err != nil {
		return h.mcpError(err), nil, nil
	}

	return nil, h.envelope.Apply(session, negotiated), nil
}

func (h *Handler) mcpCompleteCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CompleteCheckoutInput,
) (*mcp.CallToolResult, *model.Checkout, error) {
	negotiated, errResult := h.mcpNegotiate(ctx, &input.Meta)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.ID == "" {
		return h.mcpError(model.NewInvalidRequestError("id", "checkout ID required")), nil, nil
	}

	session, err := h.service.Complete(ctx, input.ID, &input.Checkout, activeNames(negotiated))
	if err != nil {
		return h.mcpError(err), nil, nil
	}

	return nil, h.envelope.Apply(session, negotiated), nil
}

func (h *Handler) mcpCancelCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CancelCheckoutInput,
) (*mcp.CallToolResult, *model.Checkout, error) {
	negotiated, errResult := h.mcpNegotiate(ctx, &input.Meta)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.ID == "" {
		return h.mcpError(model.NewInvalidRequestError("id", "checkout ID required")), nil, nil
	}

	session, err := h.service.Cancel(ctx, input.ID, activeNames(negotiated))
	if err != nil {
		return h.mcpError(err), nil, nil
	}

	return nil, h.envelope.Apply(session, negotiated), nil
}

func (h *Handler) mcpGetProfile(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProfileInput,
) (*mcp.CallToolResult, *model.DiscoveryProfile, error) {
	return nil, h.profile, nil
}

func (h *Handler) mcpSearchProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchProductsInput,
) (*mcp.CallToolResult, *SearchProductsOutput, error) {
	products := h.catalog.Search(input.Query, input.Category)
	if products == nil {
		products = []catalog.Product{}
	}
	return nil, &SearchProductsOutput{Products: products}, nil
}

func (h *Handler) mcpGetProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProductInput,
) (*mcp.CallToolResult, *catalog.Product, error) {
	if input.ID == "" {
		return h.mcpError(model.NewInvalidRequestError("id", "product ID required")), nil, nil
	}
	product, ok := h.catalog.Product(input.ID)
	if !ok {
		return h.mcpError(model.NewInvalidRequestError("id", "unknown product")), nil, nil
	}
	return nil, product, nil
}

func (h *Handler) mcpGetComplianceInfo(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetComplianceInfoInput,
) (*mcp.CallToolResult, *ComplianceInfoOutput, error) {
	if input.Market == "" {
		return h.mcpError(model.NewInvalidRequestError("market", "market code required")), nil, nil
	}
	return nil, &ComplianceInfoOutput{
		Market:     input.Market,
		MinimumAge: h.compliance.AgeThreshold(input.Market),
		Restricted: h.compliance.IsRestricted(input.Market),
	}, nil
}

// mcpError converts service errors into tool error results carrying the
// same {error: {code, message}} body the REST transport produces.
func (h *Handler) mcpError(err error) *mcp.CallToolResult {
	var apiErr *model.APIError

	if !errors.As(err, &apiErr) {
		h.logger.Error("mcp internal error", "error", err.Error())
		apiErr = &model.APIError{
			Code:    model.CodeInternalError,
			Message: "an internal error occurred",
		}
	}

	body, _ := json.Marshal(errorResponse{
		Error: errorBody{Code: apiErr.Code, Message: apiErr.Message},
	})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
}

// mcpNegotiate resolves the caller's capability set from meta.ucp-agent.
// Mirrors the REST middleware: a missing profile gets the full merchant
// set, fetch failures degrade to core capabilities, and only a version
// mismatch is an error.
func (h *Handler) mcpNegotiate(ctx context.Context, meta *MCPMeta) (*negotiation.NegotiatedContext, *mcp.CallToolResult) {
	if h.negotiator == nil {
		return nil, nil
	}

	profileURL := ""
	if meta != nil && meta.UCPAgent != nil {
		profileURL = meta.UCPAgent.Profile
	}

	negotiated, err := h.negotiator.Negotiate(ctx, profileURL)
	if err != nil {
		var verr *negotiation.VersionError
		if errors.As(err, &verr) {
			body, _ := json.Marshal(errorResponse{
				Error: errorBody{Code: verr.Code, Message: verr.Message},
			})
			return nil, &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
			}
		}
		h.logger.Warn("negotiation failed, using default capabilities", "error", err)
		return h.negotiator.Default(), nil
	}

	if negotiated.FetchError != nil {
		h.logger.Warn("agent profile fetch failed, using core capabilities",
			"profile_url", profileURL,
			"error", negotiated.FetchError.Error())
	}

	return negotiated, nil
}
