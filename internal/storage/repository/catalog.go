package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

// table описывает справочник с целочисленным id. Имена таблиц и колонок
// заданы константами в этом файле, значения всегда передаются параметрами.
type table[T any] struct {
	db      *sql.DB
	name    string
	selects string
	columns []string
	orderBy string
	scan    func(scanner) (T, error)
	values  func(T) []any
}

func (t *table[T]) list(ctx context.Context, op, where string) ([]T, error) {
	query := "SELECT " + t.selects + " FROM " + t.name
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + t.orderBy

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]T, 0)
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (t *table[T]) get(ctx context.Context, op string, id int64) (*T, error) {
	row := t.db.QueryRowContext(ctx, "SELECT "+t.selects+" FROM "+t.name+" WHERE id = $1", id)
	item, err := t.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

func (t *table[T]) create(ctx context.Context, op string, item T) (int64, error) {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		t.name, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := t.db.QueryRowContext(ctx, query, t.values(item)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (t *table[T]) update(ctx context.Context, op string, id int64, item T) error {
	sets := make([]string, len(t.columns))
	for i, c := range t.columns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	args := append(t.values(item), id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", t.name, strings.Join(sets, ", "), len(args))

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res, op)
}

func (t *table[T]) delete(ctx context.Context, op string, id int64) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res, op)
}

// PlanRepo тарифные планы.
type PlanRepo struct {
	t table[models.Plan]
}

// Plans возвращает репозиторий тарифов.
func (s *Storage) Plans() *PlanRepo {
	return &PlanRepo{t: table[models.Plan]{
		db:      s.DB,
		name:    "plans",
		selects: "id, name, description, price::text, days, traffic_limit_gb, squad_uuid, is_active, sort_order",
		columns: []string{"name", "description", "price", "days", "traffic_limit_gb", "squad_uuid", "is_active", "sort_order"},
		orderBy: "sort_order, id",
		scan: func(r scanner) (models.Plan, error) {
			var p models.Plan
			err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Days, &p.TrafficLimitGB, &p.SquadUUID, &p.IsActive, &p.SortOrder)
			return p, err
		},
		values: func(p models.Plan) []any {
			return []any{p.Name, p.Description, p.Price, p.Days, p.TrafficLimitGB, p.SquadUUID, p.IsActive, p.SortOrder}
		},
	}}
}

func (r *PlanRepo) List(ctx context.Context) ([]models.Plan, error) {
	return r.t.list(ctx, "storage.Plans.List", "")
}

// ListActive тарифы, доступные для покупки.
func (r *PlanRepo) ListActive(ctx context.Context) ([]models.Plan, error) {
	return r.t.list(ctx, "storage.Plans.ListActive", "is_active")
}

func (r *PlanRepo) Get(ctx context.Context, id int64) (*models.Plan, error) {
	return r.t.get(ctx, "storage.Plans.Get", id)
}

func (r *PlanRepo) Create(ctx context.Context, p models.Plan) (int64, error) {
	return r.t.create(ctx, "storage.Plans.Create", p)
}

func (r *PlanRepo) Update(ctx context.Context, id int64, p models.Plan) error {
	return r.t.update(ctx, "storage.Plans.Update", id, p)
}

func (r *PlanRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, "storage.Plans.Delete", id)
}

// LocationRepo локации серверов.
type LocationRepo struct {
	t table[models.Location]
}

// Locations возвращает репозиторий локаций.
func (s *Storage) Locations() *LocationRepo {
	return &LocationRepo{t: table[models.Location]{
		db:      s.DB,
		name:    "locations",
		selects: "id, name, country_code, flag, is_active, sort_order",
		columns: []string{"name", "country_code", "flag", "is_active", "sort_order"},
		orderBy: "sort_order, id",
		scan: func(r scanner) (models.Location, error) {
			var l models.Location
			err := r.Scan(&l.ID, &l.Name, &l.CountryCode, &l.Flag, &l.IsActive, &l.SortOrder)
			return l, err
		},
		values: func(l models.Location) []any {
			return []any{l.Name, strings.ToUpper(l.CountryCode), l.Flag, l.IsActive, l.SortOrder}
		},
	}}
}

func (r *LocationRepo) List(ctx context.Context) ([]models.Location, error) {
	return r.t.list(ctx, "storage.Locations.List", "")
}

func (r *LocationRepo) ListActive(ctx context.Context) ([]models.Location, error) {
	return r.t.list(ctx, "storage.Locations.ListActive", "is_active")
}

func (r *LocationRepo) Get(ctx context.Context, id int64) (*models.Location, error) {
	return r.t.get(ctx, "storage.Locations.Get", id)
}

func (r *LocationRepo) Create(ctx context.Context, l models.Location) (int64, error) {
	return r.t.create(ctx, "storage.Locations.Create", l)
}

func (r *LocationRepo) Update(ctx context.Context, id int64, l models.Location) error {
	return r.t.update(ctx, "storage.Locations.Update", id, l)
}

func (r *LocationRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, "storage.Locations.Delete", id)
}

// NewsRepo новости.
type NewsRepo struct {
	t table[models.News]
}

// News возвращает репозиторий новостей.
func (s *Storage) News() *NewsRepo {
	return &NewsRepo{t: table[models.News]{
		db:      s.DB,
		name:    "news",
		selects: "id, title, content, published, created_at",
		columns: []string{"title", "content", "published"},
		orderBy: "created_at DESC, id DESC",
		scan: func(r scanner) (models.News, error) {
			var n models.News
			err := r.Scan(&n.ID, &n.Title, &n.Content, &n.Published, &n.CreatedAt)
			return n, err
		},
		values: func(n models.News) []any {
			return []any{n.Title, n.Content, n.Published}
		},
	}}
}

func (r *NewsRepo) List(ctx context.Context) ([]models.News, error) {
	return r.t.list(ctx, "storage.News.List", "")
}

// ListPublished опубликованные новости, свежие первыми.
func (r *NewsRepo) ListPublished(ctx context.Context) ([]models.News, error) {
	return r.t.list(ctx, "storage.News.ListPublished", "published")
}

func (r *NewsRepo) Get(ctx context.Context, id int64) (*models.News, error) {
	return r.t.get(ctx, "storage.News.Get", id)
}

func (r *NewsRepo) Create(ctx context.Context, n models.News) (int64, error) {
	return r.t.create(ctx, "storage.News.Create", n)
}

func (r *NewsRepo) Update(ctx context.Context, id int64, n models.News) error {
	return r.t.update(ctx, "storage.News.Update", id, n)
}

func (r *NewsRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, "storage.News.Delete", id)
}

// ReviewRepo отзывы.
type ReviewRepo struct {
	t table[models.Review]
}

// Reviews возвращает репозиторий отзывов.
func (s *Storage) Reviews() *ReviewRepo {
	return &ReviewRepo{t: table[models.Review]{
		db:      s.DB,
		name:    "reviews",
		selects: "id, author, rating, text, approved, created_at",
		columns: []string{"author", "rating", "text", "approved"},
		orderBy: "created_at DESC, id DESC",
		scan: func(r scanner) (models.Review, error) {
			var v models.Review
			err := r.Scan(&v.ID, &v.Author, &v.Rating, &v.Text, &v.Approved, &v.CreatedAt)
			return v, err
		},
		values: func(v models.Review) []any {
			return []any{v.Author, v.Rating, v.Text, v.Approved}
		},
	}}
}

func (r *ReviewRepo) List(ctx context.Context) ([]models.Review, error) {
	return r.t.list(ctx, "storage.Reviews.List", "")
}

// ListApproved одобренные отзывы для сайта.
func (r *ReviewRepo) ListApproved(ctx context.Context) ([]models.Review, error) {
	return r.t.list(ctx, "storage.Reviews.ListApproved", "approved")
}

func (r *ReviewRepo) Get(ctx context.Context, id int64) (*models.Review, error) {
	return r.t.get(ctx, "storage.Reviews.Get", id)
}

func (r *ReviewRepo) Create(ctx context.Context, v models.Review) (int64, error) {
	return r.t.create(ctx, "storage.Reviews.Create", v)
}

func (r *ReviewRepo) Update(ctx context.Context, id int64, v models.Review) error {
	return r.t.update(ctx, "storage.Reviews.Update", id, v)
}

func (r *ReviewRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, "storage.Reviews.Delete", id)
}

// TrackingCodeRepo счётчики аналитики.
type TrackingCodeRepo struct {
	t table[models.TrackingCode]
}

// TrackingCodes возвращает репозиторий счётчиков.
func (s *Storage) TrackingCodes() *TrackingCodeRepo {
	return &TrackingCodeRepo{t: table[models.TrackingCode]{
		db:      s.DB,
		name:    "tracking_codes",
		selects: "id, name, placement, code, enabled",
		columns: []string{"name", "placement", "code", "enabled"},
		orderBy: "id",
		scan: func(r scanner) (models.TrackingCode, error) {
			var c models.TrackingCode
			err := r.Scan(&c.ID, &c.Name, &c.Placement, &c.Code, &c.Enabled)
			return c, err
		},
		values: func(c models.TrackingCode) []any {
			return []any{c.Name, c.Placement, c.Code, c.Enabled}
		},
	}}
}

func (r *TrackingCodeRepo) List(ctx context.Context) ([]models.TrackingCode, error) {
	return r.t.list(ctx, "storage.TrackingCodes.List", "")
}

func (r *TrackingCodeRepo) ListEnabled(ctx context.Context) ([]models.TrackingCode, error) {
	return r.t.list(ctx, "storage.TrackingCodes.ListEnabled", "enabled")
}

func (r *TrackingCodeRepo) Get(ctx context.Context, id int64) (*models.TrackingCode, error) {
	return r.t.get(ctx, "storage.TrackingCodes.Get", id)
}

func (r *TrackingCodeRepo) Create(ctx context.Context, c models.TrackingCode) (int64, error) {
	return r.t.create(ctx, "storage.TrackingCodes.Create", c)
}

func (r *TrackingCodeRepo) Update(ctx context.Context, id int64, c models.TrackingCode) error {
	return r.t.update(ctx, "storage.TrackingCodes.Update", id, c)
}

func (r *TrackingCodeRepo) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, "storage.TrackingCodes.Delete", id)
}
