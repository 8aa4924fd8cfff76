package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/imclient/pkg/client"
	"github.com/vango-dev/imclient/pkg/network"
)

type stateResponse struct {
	Session string `json:"session"`
	State   string `json:"state"`
	Cause   string `json:"cause,omitempty"`
	Account int64  `json:"account,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Friends int    `json:"friends"`
	Groups  int    `json:"groups"`
	Resumed bool   `json:"resumed"`
}

// debugRouter serves metrics and session state for the connect command.
func debugRouter(c *client.Client, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := c.Network()
		if h == nil || h.State() != network.StateOK {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		var resp stateResponse
		if h := c.Network(); h != nil {
			resp.Session = h.SessionID()
			resp.State = h.State().String()
			if err := h.Cause(); err != nil {
				resp.Cause = err.Error()
			}
		} else {
			resp.State = network.StateClosed.String()
		}
		if s := c.Session(); s != nil {
			resp.Account, resp.Nick, resp.Resumed = s.Account, s.Nick, s.Resumed
		}
		if contacts := c.Contacts(); contacts != nil {
			resp.Friends, resp.Groups = len(contacts.Friends), len(contacts.Groups)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	return r
}
