package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// DBTX is the querying surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds the pgx-backed Store.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) Tickets() TicketRepository {
	return &pgTicketRepository{db: s.pool}
}

func (s *postgresStore) Timeline() TimelineRepository {
	return &pgTimelineRepository{db: s.pool}
}

// WithinTx binds both repositories to one transaction so the coordinator's
// store-write and ledger-append commit or roll back together. Reads inside
// the transaction lock the row: two concurrent read-modify-write cycles on
// the same ticket serialize instead of the second silently reverting the
// first's column.
func (s *postgresStore) WithinTx(ctx context.Context, fn func(tickets TicketRepository, timeline TimelineRepository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTicketRepository{db: tx, forUpdate: true}, &pgTimelineRepository{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTicketRepository struct {
	db        DBTX
	forUpdate bool
}

const ticketColumns = `id, title, description, customer, pipeline, status, priority, assigned_to, created_at, updated_at`

func (r *pgTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, customer, pipeline, status, priority, assigned_to, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Customer,
		ticket.Pipeline,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *pgTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, customer=$3, pipeline=$4,
            status=$5, priority=$6, assigned_to=$7, updated_at=$8
        WHERE id=$9`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Customer,
		ticket.Pipeline,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Customer,
		&ticket.Pipeline,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *pgTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.WantsPipeline() {
		args = append(args, filter.Pipeline)
		clauses = append(clauses, fmt.Sprintf("pipeline=$%d", len(args)))
	}
	if filter.WantsStatus() {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if strings.TrimSpace(filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(customer) LIKE %s OR LOWER(id) LIKE %s)",
			placeholder, placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *pgTicketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgTicketRepository) MaxTicketNumber(ctx context.Context) (int, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tickets`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		if n, ok := domain.TicketNumber(id); ok && n > max {
			max = n
		}
	}
	return max, rows.Err()
}

func (r *pgTicketRepository) PipelineCounts(ctx context.Context) (domain.PipelineStats, error) {
	var stats domain.PipelineStats

	rows, err := r.db.Query(ctx,
		`SELECT pipeline, COUNT(*) FROM tickets WHERE status <> $1 GROUP BY pipeline`,
		domain.StatusCompleted)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var pipeline domain.Pipeline
		var count int
		if err := rows.Scan(&pipeline, &count); err != nil {
			return stats, err
		}
		switch pipeline {
		case domain.PipelineMarketing:
			stats.Marketing = count
		case domain.PipelineSales:
			stats.Sales = count
		case domain.PipelineOrders:
			stats.Orders = count
		case domain.PipelineSupport:
			stats.Support = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&stats.Total); err != nil {
		return stats, err
	}
	return stats, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Customer,
			&ticket.Pipeline,
			&ticket.Status,
			&ticket.Priority,
			&ticket.AssignedTo,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

type pgTimelineRepository struct {
	db DBTX
}

func (r *pgTimelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	const query = `
        INSERT INTO timeline (ticket_id, action, "user", created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.Action,
		entry.User,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *pgTimelineRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	const query = `
        SELECT id, ticket_id, action, "user", created_at
        FROM timeline WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Action,
			&entry.User,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *pgTimelineRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM timeline WHERE ticket_id=$1`, ticketID)
	return err
}
