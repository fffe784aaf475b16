// Package handlers contains the full set of handler functions and routes
// supported by the web api.
package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/chainlite/node/business/web/v1/mid"
	"github.com/chainlite/node/foundation/web"
	"go.uber.org/zap"
)

// UIMux constructs an http.Handler with all application routes defined.
// The page streams the events of the node served at nodeURL.
func UIMux(build string, nodeURL string, shutdown chan os.Signal, log *zap.SugaredLogger) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(),
		mid.Cors("*"),
	)

	// Register the index page for the website.
	ig, err := newIndex(build, nodeURL)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	return app, nil
}
