package main

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/fixflow-io/fixflow/internal/common"
	"github.com/fixflow-io/fixflow/internal/notify"
	"github.com/fixflow-io/fixflow/internal/observability"
	"github.com/fixflow-io/fixflow/internal/repair"
	"github.com/fixflow-io/fixflow/internal/repair/pgstore"
	"github.com/fixflow-io/fixflow/internal/search"
	"github.com/fixflow-io/fixflow/internal/search/esindex"
	prom "github.com/hertz-contrib/monitor-prometheus"
)

const serviceName = "repair-svc"

var promOnce sync.Once

// deps bundles everything the route handlers need. Built once per server.
type deps struct {
	cfg          *common.Config
	tickets      repair.TicketStore
	notes        repair.PartsNoteStore
	quotes       repair.QuotationStore
	agreements   repair.AgreementStore
	appointments repair.AppointmentStore
	seq          repair.Sequence
	engine       *repair.Engine
	resolver     *repair.Resolver
	converter    *repair.Converter
	index        search.Index
	objects      repair.ObjectStore
	notifier     repair.Notifier

	// non-nil when the backend can report liveness
	pgPing func(context.Context) error
	esPing func(context.Context) error
	esInit bool
}

func main() {
	cfg := common.LoadConfig()
	common.InitLogger()
	common.InitHertzLogger()
	shutdownTracing := observability.InitTracing(serviceName, cfg.OtelEndpoint, common.Logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()
	observability.InitMetrics(serviceName, cfg.MetricsAddr, common.Logger)

	h := BuildServer(cfg)
	log.Printf("%s listening on %s", serviceName, getAddr(cfg))
	h.Spin()
}

func getAddr(cfg *common.Config) string {
	if cfg.HTTPAddr != "" {
		return cfg.HTTPAddr
	}
	if v := os.Getenv("REPAIR_ADDR"); v != "" {
		return v
	}
	return ":8080"
}

// BuildServer assembles the Hertz server with all routes for reuse in tests.
func BuildServer(cfg *common.Config) *server.Hertz {
	common.InitLogger()
	common.InitHertzLogger()
	d := buildDeps(cfg)

	var h *server.Hertz
	promOnce.Do(func() {
		// first server owns the prometheus tracer; PROM_DISABLE skips it for tests
		if os.Getenv("PROM_DISABLE") == "1" {
			h = server.Default(server.WithHostPorts(getAddr(cfg)))
		} else {
			h = server.Default(
				server.WithHostPorts(getAddr(cfg)),
				server.WithTracer(prom.NewServerTracer(":9100", "/metrics", prom.WithEnableGoCollector(true))),
			)
		}
	})
	if h == nil { // subsequent builds skip the tracer to avoid a duplicate /metrics listener
		h = server.Default(server.WithHostPorts(getAddr(cfg)))
	}
	for _, m := range common.Middlewares() {
		h.Use(m)
	}
	h.GET("/metrics/domain", func(c context.Context, ctx *app.RequestContext) {
		ctx.Response.Header.Set("Content-Type", "text/plain; charset=utf-8")
		ctx.Write([]byte(observability.Snapshot()))
	})
	registerHealthRoutes(h, d)
	registerTicketRoutes(h, d)
	registerDocumentRoutes(h, d)
	registerIntakeRoutes(h, d)
	return h
}

// buildDeps wires stores, search, notification and the domain services from
// the configured backends. Unreachable backends degrade to memory with a log
// line; readiness reports the degradation.
func buildDeps(cfg *common.Config) *deps {
	d := &deps{cfg: cfg}

	switch cfg.StoreBackend {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pg, err := pgstore.New(ctx, cfg.PostgresDSN)
		if err == nil {
			err = pg.EnsureSchema(ctx)
		}
		if err != nil {
			log.Printf("failed to init postgres store, falling back to memory: %v", err)
			d.memoryStores()
		} else {
			d.tickets = pg
			d.notes = pg.PartsNotes()
			d.quotes = pg.Quotations()
			d.agreements = pg.Agreements()
			d.appointments = pg.Appointments()
			d.seq = pg
			d.pgPing = pg.Ping
		}
	default:
		d.memoryStores()
	}

	if cfg.SearchBackend == "es" {
		idx, err := esindex.New(esindex.Config{
			Addresses: cfg.EsAddressesOrDefault(),
			Index:     cfg.ESIndex,
			Username:  cfg.ESUsername,
			Password:  cfg.ESPassword,
		})
		if err != nil {
			log.Printf("failed to init ES index, falling back to memory: %v", err)
			d.index = search.NewMemoryIndex()
		} else {
			d.index = idx
			d.esPing = idx.Ping
			d.esInit = true
		}
	} else {
		d.index = search.NewMemoryIndex()
	}

	if cfg.NotifyWebhookURL != "" {
		d.notifier = notify.NewWebhookMailer(cfg.NotifyWebhookURL, cfg.NotifyWebhookToken)
	} else {
		d.notifier = notify.NewLogMailer(common.Logger)
	}

	if cfg.ObjectDir != "" {
		d.objects = repair.NewFSObjectStore(cfg.ObjectDir)
	} else {
		d.objects = repair.NewMemoryObjectStore()
	}

	d.resolver = repair.NewResolver(d.tickets, d.notes, d.quotes)
	d.engine = repair.NewEngine(d.tickets, d.resolver, d.notifier)
	d.converter = repair.NewConverter(d.tickets, d.agreements, d.appointments, d.seq, d.notifier)
	return d
}

func (d *deps) memoryStores() {
	d.tickets = repair.NewMemoryTicketStore()
	d.notes = repair.NewMemoryPartsNoteStore()
	d.quotes = repair.NewMemoryQuotationStore()
	d.agreements = repair.NewMemoryAgreementStore()
	d.appointments = repair.NewMemoryAppointmentStore()
	d.seq = repair.NewMemorySequence()
}

func registerHealthRoutes(h *server.Hertz, d *deps) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(200, map[string]any{"status": "ok"})
	})
	h.GET("/ready", func(c context.Context, ctx *app.RequestContext) {
		out := map[string]any{"status": "ready", "store": d.cfg.StoreBackend, "search": d.cfg.SearchBackend}
		pingCtx, cancel := context.WithTimeout(c, 400*time.Millisecond)
		defer cancel()
		if d.pgPing != nil {
			if err := d.pgPing(pingCtx); err != nil {
				ctx.JSON(503, map[string]any{"status": "degraded", "store": "postgres", "error": err.Error()})
				return
			}
		} else if d.cfg.StoreBackend == "postgres" {
			out["store"] = "memory-fallback"
		}
		if d.cfg.SearchBackend == "es" {
			if !d.esInit {
				out["search"] = "memory-fallback"
			} else if err := d.esPing(pingCtx); err != nil {
				ctx.JSON(503, map[string]any{"status": "degraded", "search": "es", "error": err.Error()})
				return
			}
		}
		ctx.JSON(200, out)
	})
}

// operatorFrom reads the acting operator from request headers. Authentication
// happens upstream; these headers are set by the gateway.
func operatorFrom(ctx *app.RequestContext) repair.Operator {
	return repair.Operator{
		Name:       string(ctx.GetHeader("X-Operator-Name")),
		Permission: repair.Permission(ctx.GetHeader("X-Operator-Permission")),
		Location:   string(ctx.GetHeader("X-Operator-Location")),
	}
}

// writeDomainError maps a core *repair.Error to the HTTP error schema;
// anything else becomes a 500.
func writeDomainError(c context.Context, ctx *app.RequestContext, err error) {
	if de, ok := err.(*repair.Error); ok {
		common.WriteError(c, ctx, common.MapErrorCodeToHTTP(de.Code), de.Code, de.Message)
		return
	}
	common.WriteError(c, ctx, 500, common.ErrCodeInternal, "internal error")
}
