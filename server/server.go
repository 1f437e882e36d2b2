// Package server exposes the webhook endpoint that feeds signals into the
// trade engine. Authentication is a path token plus an optional source-IP
// allowlist, matching how charting platforms deliver alert webhooks.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradehook/config"
	"github.com/rustyeddy/tradehook/trade"
)

// SignalHandler is the trade engine surface the server needs.
type SignalHandler interface {
	Handle(ctx context.Context, sig trade.Signal) (trade.Outcome, error)
	State() trade.State
}

type Server struct {
	addr    string
	router  *gin.Engine
	handler SignalHandler
	tokens  map[string]bool
	allow   *allowlist
	log     *slog.Logger
}

func New(cfg config.ServerConfig, handler SignalHandler) (*Server, error) {
	allow, err := newAllowlist(cfg.AllowedIPs, cfg.AllowedNetworks)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]bool, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens[t] = true
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:    cfg.Addr,
		router:  router,
		handler: handler,
		tokens:  tokens,
		allow:   allow,
		log:     slog.Default(),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", s.handleStatus)
	router.POST("/webhook/:token", s.handleWebhook)

	return s, nil
}

// Router exposes the gin handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("webhook server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"position_state": string(s.handler.State())})
}

func (s *Server) handleWebhook(c *gin.Context) {
	rlog := newRequestLog()

	if !s.tokens[c.Param("token")] {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
		return
	}
	if !s.allow.allowed(c.ClientIP()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "ip not allowed"})
		return
	}

	var sig trade.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		rlog.add(fmt.Sprintf("invalid JSON: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "log": rlog.lines})
		return
	}
	rlog.add(fmt.Sprintf("received signal %s %s", sig.Action, sig.Ticker))

	out, err := s.handler.Handle(c.Request.Context(), sig)
	if err != nil {
		rlog.add(fmt.Sprintf("signal rejected: %v", err))
		status := http.StatusInternalServerError
		if trade.IsValidation(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "id": out.Signal.ID, "log": rlog.lines})
		return
	}

	rlog.add(fmt.Sprintf("executed %s %s: %d units", out.Signal.Action, out.Instrument, out.Units))
	resp := gin.H{
		"id":         out.Signal.ID,
		"instrument": out.Instrument,
		"units":      out.Units,
		"dry_run":    out.Order.DryRun,
		"log":        rlog.lines,
	}
	if out.Sizing != nil {
		resp["sizing"] = out.Sizing
	}
	c.JSON(http.StatusOK, resp)
}

// requestLog accumulates timestamped lines echoed back in the response so
// the alert sender's own log shows what the server did.
type requestLog struct {
	lines []string
}

func newRequestLog() *requestLog { return &requestLog{} }

func (l *requestLog) add(msg string) {
	l.lines = append(l.lines, time.Now().UTC().Format(time.RFC3339)+": "+msg)
}

// allowlist matches remote IPs against configured addresses and CIDR
// networks. An empty allowlist disables IP filtering.
type allowlist struct {
	ips  map[string]bool
	nets []*net.IPNet
}

func newAllowlist(ips, cidrs []string) (*allowlist, error) {
	a := &allowlist{ips: make(map[string]bool, len(ips))}
	for _, ip := range ips {
		if net.ParseIP(ip) == nil {
			return nil, fmt.Errorf("allowlist: %q is not an IP address", ip)
		}
		a.ips[ip] = true
	}
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("allowlist: parse %q: %w", cidr, err)
		}
		a.nets = append(a.nets, ipnet)
	}
	return a, nil
}

func (a *allowlist) allowed(remote string) bool {
	if len(a.ips) == 0 && len(a.nets) == 0 {
		return true
	}
	if a.ips[remote] {
		return true
	}
	ip := net.ParseIP(remote)
	if ip == nil {
		return false
	}
	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client", c.ClientIP(),
		)
	}
}
