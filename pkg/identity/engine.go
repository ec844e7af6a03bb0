// Package identity reconciles email and phone observations into clusters of linked contacts.
// Each cluster has exactly one primary contact, the oldest, and any number of secondaries that
// link to it directly.
package identity

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LockKey is the Locker key that serializes every engine mutation
const LockKey = "identify"

type Option func(*Engine)

// WithLocker replaces the default in-process MutexLocker
func WithLocker(locker Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithListeners registers listeners notified after each committed Identify call
func WithListeners(listeners ...Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, listeners...)
	}
}

// WithNormalizers replaces the default "trim" chains for emails and phone numbers
func WithNormalizers(email, phone *normalizers.Chain) Option {
	return func(e *Engine) {
		if email != nil {
			e.emailChain = email
		}
		if phone != nil {
			e.phoneChain = phone
		}
	}
}

// Engine orchestrates matching, cluster resolution, contact creation and response building
type Engine struct {
	store      Store
	locker     Locker
	listeners  []Listener
	emailChain *normalizers.Chain
	phoneChain *normalizers.Chain
	matcher    *Matcher
	resolver   *Resolver
	factory    *Factory
	reader     *ClusterReader
	logger     ectologger.Logger
}

func NewEngine(store Store, logger ectologger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		locker:     NewMutexLocker(),
		emailChain: normalizers.MustChain("trim"),
		phoneChain: normalizers.MustChain("trim"),
		matcher:    NewMatcher(store),
		resolver:   NewResolver(store, logger),
		factory:    NewFactory(store),
		reader:     NewClusterReader(store),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener registers a listener after construction
func (e *Engine) AddListener(listener Listener) {
	e.listeners = append(e.listeners, listener)
}

// Identify reconciles one observation and returns the aggregate of the cluster it belongs to.
// It fails with ErrInvalidRequest, before touching the store, when both values are absent after
// normalization. Storage failures abort the call with none of its writes kept.
func (e *Engine) Identify(ctx context.Context, request models.IdentifyRequest) (*models.IdentifyResponse, error) {
	outcome, err := e.Reconcile(ctx, request)
	if err != nil {
		return nil, err
	}
	return outcome.Response, nil
}

// Reconcile is Identify returning everything the call changed
func (e *Engine) Reconcile(ctx context.Context, request models.IdentifyRequest) (*models.IdentifyOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Identify")
	defer span.End()
	start := time.Now()

	email := e.emailChain.ApplyOptional(request.Email)
	phone := e.phoneChain.ApplyOptional(request.PhoneNumber)
	if email == nil && phone == nil {
		metrics.RecordIdentify(metrics.StatusInvalid, time.Since(start).Seconds())
		tracing.Fail(span, ErrInvalidRequest)
		return nil, ErrInvalidRequest
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"has_email": email != nil,
		"has_phone": phone != nil,
		"source":    clovercontext.GetSource(ctx),
	})

	var outcome *models.IdentifyOutcome
	err := e.withLock(ctx, func(ctx context.Context) error {
		err := e.store.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = e.reconcile(ctx, email, phone)
			if err != nil {
				return err
			}
			return lockHeld(ctx)
		})
		if err != nil {
			return err
		}
		// listeners see calls in commit order
		e.notify(ctx, outcome)
		return nil
	})
	if err != nil {
		metrics.RecordIdentify(metrics.StatusError, time.Since(start).Seconds())
		tracing.Fail(span, err)
		log.WithError(err).Error("Failed to identify contact")
		return nil, err
	}

	if outcome.Created != nil {
		metrics.RecordContactCreated(string(outcome.Created.LinkPrecedence))
	}
	if outcome.Merged() {
		metrics.RecordMerge(len(outcome.Relinked))
	}
	metrics.RecordIdentify(metrics.StatusSuccess, time.Since(start).Seconds())
	tracing.SetAttributes(ctx,
		attribute.Int64("clover.primary_id", outcome.Response.PrimaryID),
		attribute.Int("clover.cluster_size", len(outcome.Cluster)),
		attribute.String("clover.source", clovercontext.GetSource(ctx)),
	)

	return outcome, nil
}

func (e *Engine) reconcile(ctx context.Context, email, phone *string) (*models.IdentifyOutcome, error) {
	outcome := &models.IdentifyOutcome{
		Request: models.IdentifyRequest{Email: email, PhoneNumber: phone},
	}
	log := e.logger.WithContext(ctx)

	matches, err := e.matcher.Match(ctx, email, phone)
	if err != nil {
		return nil, err
	}

	var primary models.Contact
	if len(matches) == 0 {
		created, err := e.factory.CreatePrimary(ctx, email, phone)
		if err != nil {
			return nil, err
		}
		primary = created
		outcome.Created = &created
		log.WithField("contact_id", created.ID).Info("Created primary contact")
	} else {
		resolution, err := e.resolver.Resolve(ctx, matches)
		if err != nil {
			return nil, err
		}
		primary = resolution.Primary
		outcome.Demoted = resolution.Demoted
		outcome.Relinked = resolution.Relinked

		log.WithFields(map[string]any{
			"matches":    len(matches),
			"primary_id": primary.ID,
		}).Debug("Resolved observation to cluster")

		cluster, err := e.reader.Load(ctx, primary)
		if err != nil {
			return nil, err
		}
		created, err := e.factory.Extend(ctx, primary, cluster, email, phone)
		if err != nil {
			return nil, err
		}
		if created != nil {
			outcome.Created = created
			log.WithFields(map[string]any{
				"contact_id": created.ID,
				"primary_id": primary.ID,
			}).Info("Created secondary contact")
		}
	}

	cluster, err := e.reader.Load(ctx, primary)
	if err != nil {
		return nil, err
	}
	outcome.Primary = cluster[0]
	outcome.Cluster = cluster
	outcome.Response = BuildResponse(cluster)
	return outcome, nil
}

// notify runs listeners after the call committed, before the engine lock is released.
// Their failures are logged only.
func (e *Engine) notify(ctx context.Context, outcome *models.IdentifyOutcome) {
	for _, listener := range e.listeners {
		if err := listener.OnIdentify(ctx, outcome); err != nil {
			e.logger.WithContext(ctx).WithError(err).WithField("primary_id", outcome.Response.PrimaryID).Warn("Identify listener failed")
		}
	}
}

func (e *Engine) notifyReset(ctx context.Context) {
	for _, listener := range e.listeners {
		resetter, ok := listener.(ResetListener)
		if !ok {
			continue
		}
		if err := resetter.OnReset(ctx); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Reset listener failed")
		}
	}
}

func (e *Engine) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	held, unlock, err := e.locker.Lock(ctx, LockKey)
	metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(err, "failed to acquire identify lock")
		}
		return StorageError(err, "failed to acquire identify lock")
	}
	defer unlock()

	return fn(held)
}

// lockHeld fails the enclosing transaction when the lock under ctx was lost, so its writes roll back
func lockHeld(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrLockLost) {
		return StorageError(cause, "identify lock expired before commit")
	}
	return ctx.Err()
}

// ListAll returns every live contact ordered by id. It reads without taking the engine lock.
func (e *Engine) ListAll(ctx context.Context) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.ListAll")
	defer span.End()

	contacts, err := e.store.ListAll(ctx)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to list contacts")
		return nil, err
	}
	return contacts, nil
}

// Reset removes every contact and restarts id assignment
func (e *Engine) Reset(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Reset")
	defer span.End()

	err := e.withLock(ctx, func(ctx context.Context) error {
		if err := e.store.Reset(ctx); err != nil {
			return err
		}
		e.notifyReset(ctx)
		return nil
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to reset contacts")
		return err
	}
	e.logger.WithContext(ctx).Info("Contacts reset")
	return nil
}

// Seed replaces the store contents with the demo dataset
func (e *Engine) Seed(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Seed")
	defer span.End()

	contacts := SeedContacts()
	err := e.withLock(ctx, func(ctx context.Context) error {
		err := e.store.RunInTx(ctx, func(ctx context.Context) error {
			if err := e.store.Load(ctx, contacts); err != nil {
				return err
			}
			return lockHeld(ctx)
		})
		if err != nil {
			return err
		}
		e.notifyReset(ctx)
		return nil
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to seed contacts")
		return err
	}
	e.logger.WithContext(ctx).WithField("contacts", len(contacts)).Info("Contacts seeded")
	return nil
}
