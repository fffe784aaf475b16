package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/web"
)

//go:embed assets/index.html
var assets embed.FS

type index struct {
	page []byte
}

// newIndex renders the page once with the websocket address of the node.
func newIndex(build string, nodeURL string) (index, error) {
	host, err := peer.Normalize(nodeURL)
	if err != nil {
		return index{}, err
	}

	u, err := url.Parse(peer.New(host).URL("/v1/events"))
	if err != nil {
		return index{}, err
	}
	u.Scheme = map[string]string{"http": "ws", "https": "wss"}[u.Scheme]

	tmpl, err := template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return index{}, err
	}

	data := struct {
		Build  string
		Node   string
		Events string
	}{
		Build:  build,
		Node:   host,
		Events: u.String(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return index{}, fmt.Errorf("executing template: %w", err)
	}

	return index{page: buf.Bytes()}, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(ig.page)

	return nil
}
