package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/incident_intelligence_system/internal/models"
)

// incidentCacheTTL - срок жизни кэша инцидента в Redis
const incidentCacheTTL = 5 * time.Minute

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) *IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

const incidentColumns = `
	id,
	category,
	description,
	priority,
	status,
	ST_Y(location::geometry) as latitude,
	ST_X(location::geometry) as longitude,
	address,
	created_at,
	updated_at
`

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (category, description, priority, status, location, address)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326), $7)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.Category,
		incident.Description,
		incident.Priority,
		incident.Status,
		incident.Longitude,
		incident.Latitude,
		incident.Address,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident := &models.Incident{}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.Category,
		&incident.Description,
		&incident.Priority,
		&incident.Status,
		&incident.Latitude,
		&incident.Longitude,
		&incident.Address,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// UpdateStatus обновляет статус и описание инцидента
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *models.Incident) error {
	query := `
		UPDATE incidents SET
			status = $1,
			description = $2,
			updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.Status,
		incident.Description,
		incident.ID,
	).Scan(&incident.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("incident with id %s not found for update", incident.ID)
		}
		return fmt.Errorf("failed to update incident: %w", err)
	}
	return nil
}

// Delete удаляет инцидент
func (r *IncidentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s not found for delete", id)
	}
	return nil
}

// ListIncidents возвращает все инциденты, свежие первыми
func (r *IncidentRepository) ListIncidents(ctx context.Context) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents ORDER BY created_at DESC;`
	return r.queryIncidents(ctx, query)
}

// ListAdmin возвращает инциденты для панели администратора:
// сначала высокий приоритет, внутри приоритета свежие первыми
func (r *IncidentRepository) ListAdmin(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		ORDER BY
			CASE priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 ELSE 1 END DESC,
			created_at DESC;
	`
	return r.queryIncidents(ctx, query)
}

// FetchRecent возвращает инциденты, созданные не раньше since,
// в порядке создания
func (r *IncidentRepository) FetchRecent(ctx context.Context, since time.Time) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE created_at >= $1 ORDER BY created_at ASC;`
	return r.queryIncidents(ctx, query, since)
}

// ListNearby находит инциденты в радиусе от точки
func (r *IncidentRepository) ListNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE ST_DWithin(
			location,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3
		);
	`
	return r.queryIncidents(ctx, query, lon, lat, radiusMeters)
}

func (r *IncidentRepository) queryIncidents(ctx context.Context, query string, args ...any) ([]*models.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident := &models.Incident{}
		err := rows.Scan(
			&incident.ID,
			&incident.Category,
			&incident.Description,
			&incident.Priority,
			&incident.Status,
			&incident.Latitude,
			&incident.Longitude,
			&incident.Address,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error incidents iteration: %w", err)
	}
	return incidents, nil
}

// GetUserLocation возвращает сохранённое местоположение пользователя
func (r *IncidentRepository) GetUserLocation(ctx context.Context, userID string) (*models.UserLocation, error) {
	location := &models.UserLocation{}
	query := `
		SELECT
			id,
			user_id,
			ST_Y(location::geometry) as latitude,
			ST_X(location::geometry) as longitude,
			notification_radius,
			created_at,
			updated_at
		FROM user_locations
		WHERE user_id = $1;
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&location.ID,
		&location.UserID,
		&location.Latitude,
		&location.Longitude,
		&location.NotificationRadius,
		&location.CreatedAt,
		&location.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user location for %s not found", userID)
		}
		return nil, fmt.Errorf("failed to get user location: %w", err)
	}
	return location, nil
}

// UpsertUserLocation атомарно создает или обновляет местоположение пользователя
func (r *IncidentRepository) UpsertUserLocation(ctx context.Context, location *models.UserLocation) error {
	query := `
		INSERT INTO user_locations (user_id, location, notification_radius)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4)
		ON CONFLICT (user_id) DO UPDATE SET
			location = EXCLUDED.location,
			notification_radius = EXCLUDED.notification_radius,
			updated_at = NOW()
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		location.UserID,
		location.Longitude,
		location.Latitude,
		location.NotificationRadius,
	).Scan(&location.ID, &location.CreatedAt, &location.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user location: %w", err)
	}
	return nil
}

// CountTotal возвращает общее число инцидентов
func (r *IncidentRepository) CountTotal(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

// CountCreatedSince возвращает число инцидентов, созданных не раньше since
func (r *IncidentRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM incidents WHERE created_at >= $1;`
	if err := r.db.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent incidents: %w", err)
	}
	return count, nil
}

// CountsByCategory возвращает число инцидентов в разрезе категорий
func (r *IncidentRepository) CountsByCategory(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, "category")
}

// CountsByPriority возвращает число инцидентов в разрезе приоритетов
func (r *IncidentRepository) CountsByPriority(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, "priority")
}

// CountsByStatus возвращает число инцидентов в разрезе статусов
func (r *IncidentRepository) CountsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countsBy(ctx, "status")
}

// countsBy группирует по одной из фиксированных колонок.
// column подставляется только из констант выше, не из пользовательского ввода.
func (r *IncidentRepository) countsBy(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM incidents GROUP BY %s;`, column, column)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[value] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error counts iteration: %w", err)
	}
	return counts, nil
}

// GetIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	key := fmt.Sprintf("incident:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	key := fmt.Sprintf("incident:%s", incident.ID.String())
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, val, incidentCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("incident:%s", id.String())
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}
