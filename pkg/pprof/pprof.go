package pprof

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/vantutran2k1/rsql/pkg/logger"
)

// StartServer serves the default mux, which net/http/pprof registers on. An
// empty addr disables it.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	logger.Info("starting pprof server", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("pprof server failed", "error", err)
	}
}
