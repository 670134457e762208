package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadFromPostgres reads the departments and doctors tables into a Catalog.
func LoadFromPostgres(ctx context.Context, q Querier) (*Catalog, error) {
	depts, err := loadDepartments(ctx, q)
	if err != nil {
		return nil, err
	}
	docs, err := loadDoctors(ctx, q)
	if err != nil {
		return nil, err
	}

	c, err := New(depts, docs)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return c, nil
}

func loadDepartments(ctx context.Context, q Querier) ([]Department, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name
		FROM departments
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return out, nil
}

func loadDoctors(ctx context.Context, q Querier) ([]Doctor, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, specialization, department_id, availability
		FROM doctors
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.DepartmentID, &d.Availability); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doctors: %w", err)
	}
	return out, nil
}
