package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.QuestTemplate, error) {
	var t model.QuestTemplate
	var householdID sql.NullInt64
	var active int

	err := scanner.Scan(
		&t.ID, &t.Key, &t.Scope, &householdID, &t.Title, &t.Category,
		&t.SuggestedPoints, &active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if householdID.Valid {
		t.HouseholdID = &householdID.Int64
	}
	t.Active = active != 0
	return &t, nil
}

const templateCols = `id, key, scope, household_id, title, category, suggested_points, active, created_at, updated_at`

func (s *TemplateStore) Create(key, scope string, householdID *int64, title, category string, suggestedPoints int) (*model.QuestTemplate, error) {
	var hID sql.NullInt64
	if householdID != nil {
		hID = sql.NullInt64{Int64: *householdID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO quest_templates (key, scope, household_id, title, category, suggested_points) VALUES (?, ?, ?, ?, ?, ?)`,
		key, scope, hID, title, category, suggestedPoints,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TemplateStore) GetByID(id int64) (*model.QuestTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM quest_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) GetByKey(key string) (*model.QuestTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM quest_templates WHERE key = ?`, key)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template by key: %w", err)
	}
	return t, nil
}

// ListAvailable returns active templates visible to a household: system-wide
// templates plus the household's own.
func (s *TemplateStore) ListAvailable(householdID int64) ([]model.QuestTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+templateCols+` FROM quest_templates
		 WHERE active = 1 AND (scope = 'system' OR household_id = ?)
		 ORDER BY scope ASC, title ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.QuestTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// UpdateDisplay changes the mutable display fields. The key is immutable and
// templates are never hard-deleted once a task references them.
func (s *TemplateStore) UpdateDisplay(id int64, title, category string, suggestedPoints int) (*model.QuestTemplate, error) {
	_, err := s.db.Exec(
		`UPDATE quest_templates SET title = ?, category = ?, suggested_points = ?, updated_at = datetime('now') WHERE id = ?`,
		title, category, suggestedPoints, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.GetByID(id)
}

func (s *TemplateStore) SetActive(id int64, active bool) (*model.QuestTemplate, error) {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(
		`UPDATE quest_templates SET active = ?, updated_at = datetime('now') WHERE id = ?`,
		a, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set template active: %w", err)
	}
	return s.GetByID(id)
}
