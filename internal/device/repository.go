package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device record.
	// Returns ErrExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update replaces an existing device record.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device record by ID.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, type, room, name, status, parameters, last_updated, version
		FROM devices
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT id, type, room, name, status, parameters, last_updated, version
		FROM devices
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device record.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	paramsJSON, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	query := `
		INSERT INTO devices (id, type, room, name, status, parameters, last_updated, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		string(device.Type),
		device.Room,
		device.Name,
		string(device.Status),
		string(paramsJSON),
		device.LastUpdated.UTC().Format(time.RFC3339),
		device.Version,
	)
	if err != nil {
		// Check for unique constraint violation
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update replaces an existing device record.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	paramsJSON, err := json.Marshal(device.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	query := `
		UPDATE devices SET
			type = ?, room = ?, name = ?, status = ?,
			parameters = ?, last_updated = ?, version = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(device.Type),
		device.Room,
		device.Name,
		string(device.Status),
		string(paramsJSON),
		device.LastUpdated.UTC().Format(time.RFC3339),
		device.Version,
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a device record by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType, status, paramsJSON, lastUpdated string

	err := scanner.Scan(
		&d.ID,
		&deviceType,
		&d.Room,
		&d.Name,
		&status,
		&paramsJSON,
		&lastUpdated,
		&d.Version,
	)
	if err != nil {
		return nil, err
	}

	d.Type = Type(deviceType)
	d.Status = Status(status)

	d.LastUpdated, err = time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parsing last_updated: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &d.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshalling parameters: %w", err)
	}

	return &d, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
