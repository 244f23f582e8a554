package admin

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the admin service of a running cake server.
type Client struct {
	reset    *connect.Client[emptypb.Empty, emptypb.Empty]
	getState *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:9117).
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		reset: connect.NewClient[emptypb.Empty, emptypb.Empty](
			httpClient,
			baseURL+AdminServiceResetProcedure,
			connect.WithSchema(methodDescriptor("Reset")),
			connect.WithClientOptions(opts...),
		),
		getState: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient,
			baseURL+AdminServiceGetStateProcedure,
			connect.WithSchema(methodDescriptor("GetState")),
			connect.WithClientOptions(opts...),
		),
	}
}

// NewDefaultClient is NewClient with http.DefaultClient.
func NewDefaultClient(baseURL string) *Client {
	return NewClient(http.DefaultClient, baseURL)
}

// Reset relights every candle on the server.
func (c *Client) Reset(ctx context.Context) error {
	if _, err := c.reset.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{})); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// GetState fetches the server's aggregate state.
func (c *Client) GetState(ctx context.Context) (serverengine.State, error) {
	resp, err := c.getState.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return serverengine.State{}, fmt.Errorf("get state: %w", err)
	}
	return StateFromStruct(resp.Msg), nil
}
