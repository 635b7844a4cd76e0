package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/algorithms/stats"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"github.com/RyanBlaney/sonido-smooth/smoothing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request identifier
const RequestIDHeader = "X-Request-ID"

// FilterOverrides replaces individual filter parameters for one request
type FilterOverrides struct {
	Factor        *float64 `json:"factor,omitempty"`
	DistanceSigma *float64 `json:"distance_sigma,omitempty"`
	RangeSigma    *float64 `json:"range_sigma,omitempty"`
	Radius        *int     `json:"radius,omitempty"`
	Workers       *int     `json:"workers,omitempty"`
}

// FilterRequest is the body of POST /v1/filter
type FilterRequest struct {
	Signal any              `json:"signal"`
	Config *FilterOverrides `json:"config,omitempty"`
	Report bool             `json:"report,omitempty"`
}

// FilterResponse is the reply of POST /v1/filter
type FilterResponse struct {
	Signal any                    `json:"signal"`
	Shape  []int                  `json:"shape"`
	Report *stats.SmoothingReport `json:"report,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server exposes a Smoother over HTTP
type Server struct {
	smoother *smoothing.Smoother
	engine   *gin.Engine
	logger   logging.Logger
}

// New creates the HTTP server and registers its routes
func New(smoother *smoothing.Smoother) *Server {
	if smoother.Config().Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		smoother: smoother,
		engine:   gin.New(),
		logger: logging.WithFields(logging.Fields{
			"component": "http_server",
		}),
	}

	s.engine.Use(gin.Recovery(), s.requestContext(), s.limitBody())
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/v1/filter", s.handleFilter)

	return s
}

// Handler returns the server's http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	address := s.smoother.Config().Server.Address
	srv := &http.Server{
		Addr:              address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", logging.Fields{"address": address})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestContext assigns a request id and logs every request on completion
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := logging.ContextWithFields(c.Request.Context(), logging.Fields{
			"request_id": id,
		})
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		s.logger.WithContext(ctx).Info("Request handled", logging.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	limit := s.smoother.Config().Server.MaxBodyBytes
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleFilter(c *gin.Context) {
	ctx := c.Request.Context()
	logger := s.logger.WithContext(ctx)

	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	signal, err := filters.SignalFromNested(req.Signal)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	filter, err := s.filterFor(req.Config)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.smoother.SmoothWith(ctx, filter, signal, req.Report)
	if err != nil {
		logger.Error(err, "Failed to smooth request signal")
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, FilterResponse{
		Signal: result.Signal.Nested(),
		Shape:  result.Signal.Shape(),
		Report: result.Report,
	})
}

// filterFor returns the shared filter, or a new one when the request
// overrides any parameter
func (s *Server) filterFor(o *FilterOverrides) (*filters.BilateralFilter, error) {
	shared := s.smoother.Filter()
	if o == nil {
		return shared, nil
	}

	cfg := shared.Config()
	changed := false
	if o.Factor != nil {
		cfg.Factor, changed = *o.Factor, true
	}
	if o.DistanceSigma != nil {
		cfg.DistanceSigma, changed = *o.DistanceSigma, true
	}
	if o.RangeSigma != nil {
		cfg.RangeSigma, changed = *o.RangeSigma, true
	}
	if o.Radius != nil {
		cfg.Radius, changed = *o.Radius, true
	}
	if o.Workers != nil {
		cfg.Workers, changed = *o.Workers, true
	}
	if !changed {
		return shared, nil
	}
	return filters.NewBilateralFilter(cfg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, filters.ErrInvalidShape),
		errors.Is(err, filters.ErrEmptySignal),
		errors.Is(err, filters.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
