// Package core is the host-facing service: it lists catalog types, builds and
// validates schematics, stores schematic documents and archives reports.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pidcheck/internal/blob"
	"pidcheck/internal/catalog"
	"pidcheck/internal/ctxlog"
	"pidcheck/internal/evaluate"
	"pidcheck/internal/graph"
	"pidcheck/internal/infra/persistence/memory"
	"pidcheck/internal/resolve"
	"pidcheck/pkg/domain"
)

// Service operation names reported to metrics and tracers.
const (
	OpBuild    = "build_schematic"
	OpValidate = "validate_schematic"
	OpSave     = "save_schematic"
	OpLoad     = "load_schematic"
	OpList     = "list_schematics"
	OpDelete   = "delete_schematic"
	OpArchive  = "archive_report"
)

// Service validates schematics against a catalog. It is safe for concurrent
// use; every schematic it builds is private to the caller.
type Service struct {
	catalog *catalog.Catalog
	store   PersistentStore
	blobs   blob.Store
	derived resolve.Table
	compat  *evaluate.Compatibility
	metrics MetricsRecorder
	reports ReportObserver
	tracer  Tracer
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the schematic store. The default is an in-memory store.
func WithStore(store PersistentStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBlobStore sets the report archive. The default is an in-memory store.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.blobs = store
		}
	}
}

// WithDerivedTable replaces the derived-quantity table used by the resolver.
func WithDerivedTable(t resolve.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.derived = t
		}
	}
}

// WithCompatibility replaces the signal compatibility table.
func WithCompatibility(c *evaluate.Compatibility) Option {
	return func(s *Service) {
		if c != nil {
			s.compat = c
		}
	}
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithReportObserver installs a report status sink.
func WithReportObserver(o ReportObserver) Option {
	return func(s *Service) {
		if o != nil {
			s.reports = o
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger sets the logger used for operation diagnostics. Without one the
// service logs to the logger carried by each call's context.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a service over cat.
func NewService(cat *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		store:   memory.NewStore(),
		blobs:   blob.NewMemory(),
		derived: resolve.DefaultTable(),
		compat:  evaluate.DefaultCompatibility(),
		metrics: noopMetricsRecorder{},
		reports: noopReportObserver{},
		tracer:  noopTracer{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the catalog the service validates against.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Store returns the schematic store.
func (s *Service) Store() PersistentStore { return s.store }

// Blobs returns the report archive.
func (s *Service) Blobs() blob.Store { return s.blobs }

// ListComponentTypes returns every catalog type in registration order.
func (s *Service) ListComponentTypes() []domain.ComponentType {
	return s.catalog.List()
}

// GetComponentType returns one catalog type or domain.ErrNotFound.
func (s *Service) GetComponentType(id string) (domain.ComponentType, error) {
	return s.catalog.Get(id)
}

// BuildSchematic constructs a schematic graph from a payload. Malformed
// payloads fail with domain.SchemaError or domain.ErrNotFound.
func (s *Service) BuildSchematic(ctx context.Context, p domain.SchematicPayload) (*graph.Schematic, error) {
	var sch *graph.Schematic
	err := s.run(ctx, OpBuild, func(context.Context) error {
		var err error
		sch, err = graph.Build(s.catalog, p)
		return err
	})
	return sch, err
}

// ValidateSchematic runs every check on sch and returns its report.
func (s *Service) ValidateSchematic(ctx context.Context, sch *graph.Schematic) domain.Report {
	var r domain.Report
	_ = s.run(ctx, OpValidate, func(ctx context.Context) error {
		r = s.validate(ctx, sch)
		return nil
	})
	s.reports.ObserveReport(r.Status)
	return r
}

// ValidatePayload builds p and validates the result.
func (s *Service) ValidatePayload(ctx context.Context, p domain.SchematicPayload) (domain.Report, error) {
	sch, err := s.BuildSchematic(ctx, p)
	if err != nil {
		return domain.Report{}, err
	}
	return s.ValidateSchematic(ctx, sch), nil
}

// ValidateStored loads a stored schematic and validates it.
func (s *Service) ValidateStored(ctx context.Context, id string) (domain.Report, error) {
	p, err := s.LoadSchematic(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	return s.ValidatePayload(ctx, p)
}

// SaveSchematic checks that p builds, then stores it. A payload without an id
// gets a generated one; a payload whose id is already stored replaces it.
func (s *Service) SaveSchematic(ctx context.Context, p domain.SchematicPayload) (domain.SchematicPayload, error) {
	if _, err := s.BuildSchematic(ctx, p); err != nil {
		return domain.SchematicPayload{}, err
	}
	var saved domain.SchematicPayload
	err := s.run(ctx, OpSave, func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			if _, exists := tx.FindSchematic(p.ID); exists && p.ID != "" {
				saved, err = tx.UpdateSchematic(p.ID, func(cur *domain.SchematicPayload) error {
					*cur = p.Clone()
					return nil
				})
				return err
			}
			saved, err = tx.CreateSchematic(p.Clone())
			return err
		})
	})
	return saved, err
}

// LoadSchematic returns a stored schematic or domain.ErrNotFound.
func (s *Service) LoadSchematic(ctx context.Context, id string) (domain.SchematicPayload, error) {
	var found domain.SchematicPayload
	err := s.run(ctx, OpLoad, func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			p, ok := v.FindSchematic(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntitySchematic, ID: id}
			}
			found = p
			return nil
		})
	})
	return found, err
}

// ListSchematics returns summaries of every stored schematic ordered by id.
func (s *Service) ListSchematics(ctx context.Context) ([]domain.SchematicSummary, error) {
	var out []domain.SchematicSummary
	err := s.run(ctx, OpList, func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			list := v.ListSchematics()
			out = make([]domain.SchematicSummary, 0, len(list))
			for _, p := range list {
				out = append(out, p.Summary())
			}
			return nil
		})
	})
	return out, err
}

// DeleteSchematic removes a stored schematic.
func (s *Service) DeleteSchematic(ctx context.Context, id string) error {
	return s.run(ctx, OpDelete, func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteSchematic(id)
		})
	})
}

// ArchiveReport writes r to the blob store under
// reports/<schematic id>/<uuid>.json. Reports of unsaved schematics go under
// reports/unsaved/.
func (s *Service) ArchiveReport(ctx context.Context, r domain.Report) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, OpArchive, func(ctx context.Context) error {
		var err error
		info, err = blob.PutJSON(ctx, s.blobs, ReportKey(r.SchematicID, s.newID()), r,
			map[string]string{"status": string(r.Status)})
		return err
	})
	return info, err
}

// ReportKey returns the archive key of a report.
func ReportKey(schematicID, reportID string) string {
	if schematicID == "" {
		schematicID = "unsaved"
	}
	return fmt.Sprintf("reports/%s/%s.json", schematicID, reportID)
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	if err != nil {
		level := slog.LevelWarn
		var schema domain.SchemaError
		var notFound domain.ErrNotFound
		if errors.As(err, &schema) || errors.As(err, &notFound) {
			level = slog.LevelDebug
		}
		s.log(ctx).Log(ctx, level, "operation failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return ctxlog.FromContext(ctx)
}
