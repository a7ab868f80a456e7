// Package api is the HTTP control surface: engine stats, rule management,
// and Prometheus metrics. Workers only ever read rules; this server is
// the one writer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NetWarden/internal/engine"
	"NetWarden/internal/model"
	"NetWarden/internal/rules"
)

// Server exposes the control surface over HTTP.
type Server struct {
	rules *rules.Manager
	stats func() *engine.Report
	srv   *http.Server
}

// New builds a server around the shared rule manager and a stats snapshot
// function.
func New(addr string, rm *rules.Manager, stats func() *engine.Report) *Server {
	s := &Server{rules: rm, stats: stats}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/api/v1/rules", s.listRulesHandler).Methods("GET")
	r.HandleFunc("/api/v1/rules", s.addRuleHandler).Methods("POST")
	r.HandleFunc("/api/v1/rules", s.removeRuleHandler).Methods("DELETE")
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server stopped: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats())
}

// ruleRequest is the add/remove body: {"kind": "ip|port|app|domain", "value": "..."}.
type ruleRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type rulesResponse struct {
	IPs     []string `json:"ips"`
	Ports   []uint16 `json:"ports"`
	Apps    []string `json:"apps"`
	Domains []string `json:"domains"`
}

func (s *Server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	resp := rulesResponse{
		IPs:     s.rules.BlockedIPs(),
		Ports:   s.rules.BlockedPorts(),
		Domains: s.rules.BlockedDomains(),
	}
	for _, app := range s.rules.BlockedApps() {
		resp.Apps = append(resp.Apps, app.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) addRuleHandler(w http.ResponseWriter, r *http.Request) {
	s.mutateRule(w, r, true)
}

func (s *Server) removeRuleHandler(w http.ResponseWriter, r *http.Request) {
	s.mutateRule(w, r, false)
}

func (s *Server) mutateRule(w http.ResponseWriter, r *http.Request, add bool) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	var err error
	switch req.Kind {
	case "ip":
		if add {
			err = s.rules.BlockIPString(req.Value)
		} else {
			err = s.rules.UnblockIPString(req.Value)
		}
	case "port":
		var port uint16
		if _, perr := fmt.Sscanf(req.Value, "%d", &port); perr != nil {
			err = fmt.Errorf("invalid port %q", req.Value)
		} else if add {
			s.rules.BlockPort(port)
		} else {
			s.rules.UnblockPort(port)
		}
	case "app":
		if add {
			err = s.rules.BlockAppName(req.Value)
		} else {
			err = unblockAppName(s.rules, req.Value)
		}
	case "domain":
		if add {
			s.rules.BlockDomain(req.Value)
		} else {
			s.rules.UnblockDomain(req.Value)
		}
	default:
		err = fmt.Errorf("unknown rule kind %q", req.Kind)
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func unblockAppName(rm *rules.Manager, name string) error {
	app, ok := model.ParseAppType(name)
	if !ok {
		return fmt.Errorf("unknown application %q", name)
	}
	rm.UnblockApp(app)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}
