// Package app is the realm tree mutation service: it validates input early,
// retries mutations that lost a write race and reports each outcome through
// logs, spans and metrics.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	apperrors "github.com/louisbranch/realmtree/internal/platform/errors"
	"github.com/louisbranch/realmtree/internal/platform/id"
	platformotel "github.com/louisbranch/realmtree/internal/platform/otel"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service exposes realm tree operations over a store.
type Service struct {
	store   storage.Store
	logger  *log.Logger
	tracer  trace.Tracer
	metrics *Metrics
	retry   RetryPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer replaces the global-provider tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics records mutation outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Service) {
		s.retry = policy.normalized()
	}
}

// NewService creates a service backed by store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.Default(),
		tracer: platformotel.Tracer("realms"),
		retry:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func realmAttr(key id.Key) attribute.KeyValue {
	return attribute.String("realm.id", key.String())
}

// mutate runs fn in a span, retrying retriable conflicts with exponential
// backoff. A non-nil precheck rejects the call before the store is touched.
func mutate[T any](ctx context.Context, s *Service, op string, precheck error, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if s == nil || s.store == nil {
		return zero, fmt.Errorf("realm service is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, "realms."+op, trace.WithAttributes(attrs...))
	defer span.End()

	if precheck != nil {
		s.finish(span, op, 0, precheck)
		return zero, precheck
	}

	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		value, err := fn(ctx)
		if err != nil && !apperrors.IsRetriable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	},
		backoff.WithBackOff(s.retry.backOff()),
		backoff.WithMaxTries(s.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Printf("retrying %s in %v: %v", op, next, err)
		}),
	)
	s.finish(span, op, attempts, err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (s *Service) finish(span trace.Span, op string, attempts int, err error) {
	span.SetAttributes(attribute.Int("realm.attempts", attempts))
	if err == nil {
		span.SetStatus(codes.Ok, "")
		s.metrics.observeMutation(op, "ok")
		return
	}
	code := apperrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	s.metrics.observeMutation(op, string(code))
	if code.Fatal() {
		s.logger.Printf("invariant violation op=%s: %v", op, err)
	}
}

// CheckSegment classifies a segment and renders the localized message a
// client shows next to the input field.
func (s *Service) CheckSegment(locale string, segment string) (domain.SegmentValidity, string) {
	validity := domain.ValidateSegment(segment)
	return validity, domain.SegmentMessage(locale, validity)
}

// CreateRealm creates a realm under in.ParentID.
func (s *Service) CreateRealm(ctx context.Context, in storage.NewRealm) (storage.Realm, error) {
	precheck := domain.CheckSegment(in.PathSegment)
	if precheck == nil {
		precheck = domain.CheckName(in.Name)
	}
	realm, err := mutate(ctx, s, "create_realm", precheck,
		[]attribute.KeyValue{realmAttr(in.ParentID), attribute.String("realm.segment", in.PathSegment)},
		func(ctx context.Context) (storage.Realm, error) {
			return s.store.CreateRealm(ctx, in)
		})
	if err != nil {
		return storage.Realm{}, err
	}
	s.logger.Printf("realm created id=%s path=%s", realm.ID, realm.FullPath)
	return realm, nil
}

// MoveRealm re-parents a realm.
func (s *Service) MoveRealm(ctx context.Context, realmID id.Key, newParentID id.Key) (storage.Realm, error) {
	var precheck error
	if realmID == id.RootKey {
		precheck = domain.ErrRootImmutable
	}
	realm, err := mutate(ctx, s, "move_realm", precheck,
		[]attribute.KeyValue{realmAttr(realmID), attribute.String("realm.new_parent", newParentID.String())},
		func(ctx context.Context) (storage.Realm, error) {
			return s.store.MoveRealm(ctx, realmID, newParentID)
		})
	if err != nil {
		return storage.Realm{}, err
	}
	s.logger.Printf("realm moved id=%s to=%s path=%s", realm.ID, newParentID, realm.FullPath)
	return realm, nil
}

// RenameRealm replaces a realm's path segment.
func (s *Service) RenameRealm(ctx context.Context, realmID id.Key, segment string) (storage.Realm, error) {
	precheck := domain.CheckSegment(segment)
	if realmID == id.RootKey {
		precheck = domain.ErrRootImmutable
	}
	realm, err := mutate(ctx, s, "rename_realm", precheck,
		[]attribute.KeyValue{realmAttr(realmID), attribute.String("realm.segment", segment)},
		func(ctx context.Context) (storage.Realm, error) {
			return s.store.RenameRealm(ctx, realmID, segment)
		})
	if err != nil {
		return storage.Realm{}, err
	}
	s.logger.Printf("realm renamed id=%s path=%s", realm.ID, realm.FullPath)
	return realm, nil
}

// SetRealmName sets or clears a realm's display name.
func (s *Service) SetRealmName(ctx context.Context, realmID id.Key, name storage.RealmName) (storage.Realm, error) {
	precheck := domain.CheckName(name.Name)
	if name.Name != nil && name.FromBlock != nil {
		precheck = domain.ErrNameSourceConflict
	}
	return mutate(ctx, s, "set_realm_name", precheck,
		[]attribute.KeyValue{realmAttr(realmID)},
		func(ctx context.Context) (storage.Realm, error) {
			return s.store.SetRealmName(ctx, realmID, name)
		})
}

// SetChildOrder changes how a realm lists its children.
func (s *Service) SetChildOrder(ctx context.Context, parentID id.Key, order domain.ChildOrder, childIDs []id.Key) error {
	_, err := mutate(ctx, s, "set_child_order", nil,
		[]attribute.KeyValue{realmAttr(parentID), attribute.String("realm.child_order", string(order))},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.SetChildOrder(ctx, parentID, order, childIDs)
		})
	return err
}

// DeleteRealm removes a realm and its subtree.
func (s *Service) DeleteRealm(ctx context.Context, realmID id.Key) (int, error) {
	var precheck error
	if realmID == id.RootKey {
		precheck = domain.ErrRootImmutable
	}
	removed, err := mutate(ctx, s, "delete_realm", precheck,
		[]attribute.KeyValue{realmAttr(realmID)},
		func(ctx context.Context) (int, error) {
			return s.store.DeleteRealm(ctx, realmID)
		})
	if err != nil {
		return 0, err
	}
	s.logger.Printf("realm deleted id=%s removed=%d", realmID, removed)
	return removed, nil
}

// CreateSeries creates a series.
func (s *Service) CreateSeries(ctx context.Context, title string) (storage.Series, error) {
	return mutate(ctx, s, "create_series", domain.CheckTitle(title), nil,
		func(ctx context.Context) (storage.Series, error) {
			return s.store.CreateSeries(ctx, title)
		})
}

// SetSeriesTitle retitles a series.
func (s *Service) SetSeriesTitle(ctx context.Context, seriesID id.Key, title string) (storage.Series, error) {
	return mutate(ctx, s, "set_series_title", domain.CheckTitle(title),
		[]attribute.KeyValue{attribute.String("series.id", seriesID.String())},
		func(ctx context.Context) (storage.Series, error) {
			return s.store.SetSeriesTitle(ctx, seriesID, title)
		})
}

// DeleteSeries removes a series.
func (s *Service) DeleteSeries(ctx context.Context, seriesID id.Key) error {
	_, err := mutate(ctx, s, "delete_series", nil,
		[]attribute.KeyValue{attribute.String("series.id", seriesID.String())},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.DeleteSeries(ctx, seriesID)
		})
	return err
}

// CreateEvent creates an event, optionally in a series.
func (s *Service) CreateEvent(ctx context.Context, seriesID *id.Key, title string) (storage.Event, error) {
	return mutate(ctx, s, "create_event", domain.CheckTitle(title), nil,
		func(ctx context.Context) (storage.Event, error) {
			return s.store.CreateEvent(ctx, seriesID, title)
		})
}

// SetEventTitle retitles an event.
func (s *Service) SetEventTitle(ctx context.Context, eventID id.Key, title string) (storage.Event, error) {
	return mutate(ctx, s, "set_event_title", domain.CheckTitle(title),
		[]attribute.KeyValue{attribute.String("event.id", eventID.String())},
		func(ctx context.Context) (storage.Event, error) {
			return s.store.SetEventTitle(ctx, eventID, title)
		})
}

// DeleteEvent removes an event.
func (s *Service) DeleteEvent(ctx context.Context, eventID id.Key) error {
	_, err := mutate(ctx, s, "delete_event", nil,
		[]attribute.KeyValue{attribute.String("event.id", eventID.String())},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.DeleteEvent(ctx, eventID)
		})
	return err
}

// AddBlock appends a block to a realm.
func (s *Service) AddBlock(ctx context.Context, in storage.NewBlock) (storage.Block, error) {
	return mutate(ctx, s, "add_block", nil,
		[]attribute.KeyValue{realmAttr(in.RealmID), attribute.String("block.type", string(in.Type))},
		func(ctx context.Context) (storage.Block, error) {
			return s.store.AddBlock(ctx, in)
		})
}

// SetBlockRef points a block at another event or series.
func (s *Service) SetBlockRef(ctx context.Context, blockID id.Key, ref storage.BlockRef) (storage.Block, error) {
	return mutate(ctx, s, "set_block_ref", nil,
		[]attribute.KeyValue{attribute.String("block.id", blockID.String())},
		func(ctx context.Context) (storage.Block, error) {
			return s.store.SetBlockRef(ctx, blockID, ref)
		})
}

// RemoveBlock deletes a block.
func (s *Service) RemoveBlock(ctx context.Context, blockID id.Key) error {
	_, err := mutate(ctx, s, "remove_block", nil,
		[]attribute.KeyValue{attribute.String("block.id", blockID.String())},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.RemoveBlock(ctx, blockID)
		})
	return err
}

// RebuildQueue enqueues every realm and event for a full reindex.
func (s *Service) RebuildQueue(ctx context.Context) (int, error) {
	added, err := mutate(ctx, s, "rebuild_queue", nil, nil, s.store.RebuildQueue)
	if err != nil {
		return 0, err
	}
	s.logger.Printf("reindex queue rebuilt added=%d", added)
	return added, nil
}

// AckItems removes processed queue items.
func (s *Service) AckItems(ctx context.Context, queueIDs []int64) (int, error) {
	return mutate(ctx, s, "ack_items", nil, nil, func(ctx context.Context) (int, error) {
		return s.store.AckItems(ctx, queueIDs)
	})
}
