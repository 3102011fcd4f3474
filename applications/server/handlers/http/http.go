package http

import (
	"net/http"

	"github.com/go-kit/log"

	"github.com/donmikel/formproxy/applications/server"
	"github.com/donmikel/formproxy/applications/server/config"
)

func NewHTTPServer(conf config.Api, formService server.FormService, logger log.Logger) *http.Server {
	mux := NewRouter(formService, conf, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}
