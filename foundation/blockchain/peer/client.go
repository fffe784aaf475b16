package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// ChainPath is the route every node serves its full chain on.
const ChainPath = "/v1/chain"

// Chain is the payload a node returns for its full chain.
type Chain struct {
	Chain             []database.Block `json:"chain"`
	Length            int              `json:"chain_length"`
	TotalTransactions int              `json:"total_transactions"`
}

// StatusError is returned when a node answers with a failure status.
type StatusError struct {
	StatusCode  int
	Code        string
	Description string
}

// Error implements the error interface.
func (se *StatusError) Error() string {
	if se.Description == "" {
		return fmt.Sprintf("status %d", se.StatusCode)
	}
	return fmt.Sprintf("status %d: %s: %s", se.StatusCode, se.Code, se.Description)
}

// envelope is the outer document every node response is wrapped in.
type envelope struct {
	Data        json.RawMessage `json:"data"`
	Code        string          `json:"code"`
	HTTPStatus  string          `json:"httpStatus"`
	Description string          `json:"description"`
}

// =============================================================================

// Client provides access to the API of other nodes.
type Client struct {
	http *http.Client
}

// NewClient constructs a client for talking to nodes. Deadlines come from
// the context of each call.
func NewClient() *Client {
	return &Client{
		http: &http.Client{},
	}
}

// FetchChain retrieves the full chain of the specified peer along with the
// length the peer reported for it.
func (c *Client) FetchChain(ctx context.Context, p Peer) ([]database.Block, int, error) {
	var chain Chain
	if err := c.Send(ctx, http.MethodGet, p.URL(ChainPath), nil, &chain); err != nil {
		return nil, 0, err
	}

	return chain.Chain, chain.Length, nil
}

// Send performs the request against a node and decodes the data portion of
// the response envelope into dataRecv when it is not nil.
func (c *Client) Send(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &StatusError{
			StatusCode:  resp.StatusCode,
			Code:        env.Code,
			Description: env.Description,
		}
	}

	if dataRecv != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dataRecv); err != nil {
			return fmt.Errorf("decoding data: %w", err)
		}
	}

	return nil
}
