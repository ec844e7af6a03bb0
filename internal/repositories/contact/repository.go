package contact

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const tableName = "contacts"

var columns = []string{"id", "phone_number", "email", "linked_id", "link_precedence", "created_at", "updated_at", "deleted_at"}

// Repository is a Postgres identity.Store
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

// NewRepository creates a new contact repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ identity.Store = (*Repository)(nil)

func (r *Repository) selectLive() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("id").Asc()
	return sb
}

func (r *Repository) selectContacts(ctx context.Context, operation string, sb *sqlbuilder.SelectBuilder) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository."+operation)
	defer span.End()
	defer observe(operation, time.Now())

	query, args := sb.Build()

	contacts := []models.Contact{}
	if err := r.db.QuerierFor(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to %s", operation)
		return nil, identity.StorageError(err, operation)
	}
	return contacts, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) ([]models.Contact, error) {
	sb := r.selectLive()
	sb.Where(sb.Equal("email", email))
	return r.selectContacts(ctx, "FindByEmail", sb)
}

func (r *Repository) FindByPhoneNumber(ctx context.Context, phone string) ([]models.Contact, error) {
	sb := r.selectLive()
	sb.Where(sb.Equal("phone_number", phone))
	return r.selectContacts(ctx, "FindByPhoneNumber", sb)
}

func (r *Repository) FindByLinkedID(ctx context.Context, linkedID int64) ([]models.Contact, error) {
	sb := r.selectLive()
	sb.Where(sb.Equal("linked_id", linkedID))
	return r.selectContacts(ctx, "FindByLinkedID", sb)
}

func (r *Repository) ListAll(ctx context.Context) ([]models.Contact, error) {
	return r.selectContacts(ctx, "ListAll", r.selectLive())
}

func (r *Repository) FindByID(ctx context.Context, id int64) (models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository.FindByID")
	defer span.End()
	defer observe("FindByID", time.Now())

	sb := r.selectLive()
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var c models.Contact
	err := r.db.QuerierFor(ctx).GetContext(ctx, &c, query, args...)
	if err == sql.ErrNoRows {
		return models.Contact{}, identity.ErrNotFound
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("contact_id", id).Error("failed to get contact by ID")
		return models.Contact{}, identity.StorageError(err, "FindByID")
	}
	return c, nil
}

func (r *Repository) Insert(ctx context.Context, draft models.ContactDraft) (models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository.Insert")
	defer span.End()
	defer observe("Insert", time.Now())

	now := r.now()
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("phone_number", "email", "linked_id", "link_precedence", "created_at", "updated_at")
	ib.Values(draft.PhoneNumber, draft.Email, draft.LinkedID, string(draft.LinkPrecedence), now, now)
	ib.Returning(columns...)
	query, args := ib.Build()

	var c models.Contact
	if err := r.db.QuerierFor(ctx).GetContext(ctx, &c, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert contact")
		return models.Contact{}, identity.StorageError(err, "Insert")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"contact_id":      c.ID,
		"link_precedence": c.LinkPrecedence,
	}).Debug("inserted contact")

	return c, nil
}

func (r *Repository) Reparent(ctx context.Context, id, linkedID int64) error {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository.Reparent")
	defer span.End()
	defer observe("Reparent", time.Now())

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("linked_id", linkedID),
		ub.Assign("link_precedence", string(models.LinkPrecedenceSecondary)),
		ub.Assign("updated_at", r.now()),
	)
	ub.Where(ub.Equal("id", id), ub.IsNull("deleted_at"))
	query, args := ub.Build()

	if _, err := r.db.QuerierFor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"contact_id": id,
			"linked_id":  linkedID,
		}).Error("failed to reparent contact")
		return identity.StorageError(err, "Reparent")
	}
	return nil
}

func (r *Repository) Reset(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository.Reset")
	defer span.End()
	defer observe("Reset", time.Now())

	if _, err := r.db.QuerierFor(ctx).ExecContext(ctx, "TRUNCATE TABLE "+tableName+" RESTART IDENTITY"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to reset contacts")
		return identity.StorageError(err, "Reset")
	}
	return nil
}

// Load truncates the table, inserts contacts with their own ids and moves the id sequence past them
func (r *Repository) Load(ctx context.Context, contacts []models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "ContactRepository.Load")
	defer span.End()
	defer observe("Load", time.Now())

	if err := r.Reset(ctx); err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}

	q := r.db.QuerierFor(ctx)

	// parents first so the linked_id foreign key holds
	ordered := make([]models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}
	for _, c := range contacts {
		if !c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols(columns...)
	for _, c := range ordered {
		ib.Values(c.ID, c.PhoneNumber, c.Email, c.LinkedID, string(c.LinkPrecedence), c.CreatedAt, c.UpdatedAt, c.DeletedAt)
	}
	query, args := ib.Build()

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load contacts")
		return identity.StorageError(err, "Load")
	}

	if _, err := q.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence('contacts', 'id'), (SELECT MAX(id) FROM contacts))"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to advance contact id sequence")
		return identity.StorageError(err, "Load")
	}
	return nil
}

func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctxTx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return identity.StorageError(err, "begin transaction")
	}
	defer tx.Rollback(ctxTx)

	if err := fn(ctxTx); err != nil {
		return err
	}
	if err := tx.Commit(ctxTx); err != nil {
		return identity.StorageError(err, "commit transaction")
	}
	return nil
}

func observe(operation string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
