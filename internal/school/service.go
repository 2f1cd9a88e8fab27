package school

import (
	"context"
	"math"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateSchool(ctx context.Context, input School) (School, error) {
	if err := validateCoords(input.Lat, input.Lng); err != nil {
		return School{}, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO schools (name, address, lat, lng)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, input.Name, input.Address, input.Lat, input.Lng)
	if err := row.Scan(&input.ID, &input.CreatedAt); err != nil {
		return School{}, apperr.TransientIO("school_create_failed", err)
	}
	return input, nil
}

func (s *Service) GetSchool(ctx context.Context, id int64) (School, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, address, lat, lng, created_at
		FROM schools WHERE id=$1
	`, id)
	var sc School
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Address, &sc.Lat, &sc.Lng, &sc.CreatedAt); err != nil {
		return School{}, apperr.NotFound("school_not_found", "school %d not found", id)
	}
	return sc, nil
}

func (s *Service) ListSchools(ctx context.Context) ([]School, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, address, lat, lng, created_at
		FROM schools ORDER BY name
	`)
	if err != nil {
		return nil, apperr.TransientIO("school_list_failed", err)
	}
	defer rows.Close()

	var schools []School
	for rows.Next() {
		var sc School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Address, &sc.Lat, &sc.Lng, &sc.CreatedAt); err != nil {
			return nil, apperr.TransientIO("school_list_failed", err)
		}
		schools = append(schools, sc)
	}
	return schools, nil
}

func (s *Service) CreateStudent(ctx context.Context, input Student) (Student, error) {
	if input.Name == "" {
		return Student{}, apperr.Validation("student_name_required", "student name required")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO students (school_id, name, grade, active)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, input.SchoolID, input.Name, input.Grade, input.Active)
	if err := row.Scan(&input.ID, &input.CreatedAt); err != nil {
		return Student{}, apperr.TransientIO("student_create_failed", err)
	}
	return input, nil
}

func (s *Service) Students(ctx context.Context, schoolID int64) ([]Student, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, school_id, name, grade, active, created_at
		FROM students WHERE school_id=$1
		ORDER BY name
	`, schoolID)
	if err != nil {
		return nil, apperr.TransientIO("student_list_failed", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.SchoolID, &st.Name, &st.Grade, &st.Active, &st.CreatedAt); err != nil {
			return nil, apperr.TransientIO("student_list_failed", err)
		}
		students = append(students, st)
	}
	return students, nil
}

func validateCoords(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperr.Validation("invalid_coordinates", "coordinates out of range: %v,%v", lat, lng)
	}
	return nil
}
