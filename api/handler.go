package api

import (
	"log/slog"
	"net/http"
)

// Options configures NewHandler.
type Options struct {
	Logger *slog.Logger
	// DB is required.
	DB    Database
	Items ItemStore

	// HeaderVerifier guards the items group through X-Token.
	HeaderVerifier Verifier
	// QueryVerifier, when set, guards every group through ?token=.
	QueryVerifier Verifier

	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
}

// NewHandler assembles the complete HTTP surface. It panics if o.DB is nil.
func NewHandler(o Options) http.Handler {
	if o.DB == nil {
		panic("api: NewHandler requires Options.DB")
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	items := o.Items
	if items == nil {
		items = FixtureItems()
	}
	headerVerifier := o.HeaderVerifier
	if headerVerifier == nil {
		headerVerifier = StaticToken("")
	}

	var stats SessionStatter
	if s, ok := o.DB.(SessionStatter); ok {
		stats = s
	}
	metrics := NewMetrics(stats)

	r := NewRouter(logger)
	r.Use(metrics.Instrument)
	if o.QueryVerifier != nil {
		r.Require(QueryToken("token", o.QueryVerifier))
	}

	r.Include(UsersGroup(o.DB))
	r.Include(ItemsGroup(items, headerVerifier))
	r.Include(AdminGroup())
	r.Include(RootGroup())

	r.Handle(http.MethodGet, "/healthz", healthHandler(o.DB))
	r.Handle(http.MethodGet, "/metrics", metrics.Handler())
	r.Handle(http.MethodGet, "/routes", catalogHandler(r))

	mws := []Middleware{
		Recover(logger),
		RequestIDs,
		AccessLog(logger),
		ProcessTime,
	}
	if len(o.CORSOrigins) > 0 {
		mws = append(mws, CORS(o.CORSOrigins))
	}
	if o.RateLimitRPS > 0 {
		mws = append(mws, NewRateLimiter(o.RateLimitRPS, o.RateLimitBurst).Handler)
	}
	return Chain(r, mws...)
}
