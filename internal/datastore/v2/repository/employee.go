package repository

import (
	"context"
	"fmt"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmployeeRepository reads staff members for recipient resolution.
type EmployeeRepository interface {
	// GetEmployee returns ErrEmployeeNotFound when the employee does not
	// exist in the given institution.
	GetEmployee(ctx context.Context, institutionID, id string) (*entities.Employee, error)
	SaveEmployee(ctx context.Context, e *entities.Employee) error
	ListByDepartment(ctx context.Context, institutionID, department string) ([]entities.Employee, error)
}

type employeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository creates a new EmployeeRepository.
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) GetEmployee(ctx context.Context, institutionID, id string) (*entities.Employee, error) {
	var e entities.Employee
	err := r.db.WithContext(ctx).
		Where("institution_id = ? AND id = ?", institutionID, id).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee %s: %w", id, err)
	}
	return &e, nil
}

// SaveEmployee inserts or replaces an employee.
func (r *employeeRepository) SaveEmployee(ctx context.Context, e *entities.Employee) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(e).Error
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", e.ID, err)
	}
	return nil
}

// ListByDepartment returns active employees of a department; an empty
// department selects the whole institution.
func (r *employeeRepository) ListByDepartment(ctx context.Context, institutionID, department string) ([]entities.Employee, error) {
	var out []entities.Employee
	query := r.db.WithContext(ctx).Where("institution_id = ? AND active = ?", institutionID, true)
	if department != "" {
		query = query.Where("department = ?", department)
	}
	if err := query.Order("full_name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return out, nil
}
