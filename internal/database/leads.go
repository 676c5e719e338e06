package database

import (
	"database/sql"
	"fmt"
	"time"

	"brickdesk/server/internal/models"
)

func (d *Database) GetLeads(status string, limit int) ([]models.Lead, error) {
	query := `
        SELECT id, name, phone, message, property_id, status,
               COALESCE(created_at, CURRENT_TIMESTAMP),
               COALESCE(updated_at, CURRENT_TIMESTAMP)
        FROM leads
    `
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var message sql.NullString
		var propertyID sql.NullInt64
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.Name, &l.Phone, &message, &propertyID, &l.Status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		l.Message = message.String
		if propertyID.Valid {
			l.PropertyID = &propertyID.Int64
		}
		l.CreatedAt = createdAt.Time
		l.UpdatedAt = updatedAt.Time
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (d *Database) CreateLead(l *models.Lead) error {
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	now := time.Now().UTC()
	result, err := d.db.Exec(`
        INSERT INTO leads (name, phone, message, property_id, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, l.Name, l.Phone, l.Message, l.PropertyID, l.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get lead ID: %w", err)
	}
	l.ID = id
	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

func (d *Database) UpdateLeadStatus(id int64, status string) error {
	result, err := d.db.Exec(`
        UPDATE leads SET status = ?, updated_at = ? WHERE id = ?
    `, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
