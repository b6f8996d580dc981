package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"medisaga/internal/service/booking/domain"
)

type GormServiceCatalogRepository struct {
	db *gorm.DB
}

func NewGormServiceCatalogRepository(db *gorm.DB) *GormServiceCatalogRepository {
	return &GormServiceCatalogRepository{db: db}
}

func (r *GormServiceCatalogRepository) ListActive(ctx context.Context, gender domain.ServiceGender) ([]domain.MedicalService, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if gender != "" && gender != domain.ServiceForAll {
		q = q.Where("gender IN ?", []string{string(domain.ServiceForAll), string(gender)})
	}
	var models []MedicalServiceModel
	if err := q.Order("gender asc, name asc").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list medical services")
	}
	return toDomainServices(models), nil
}

func (r *GormServiceCatalogRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.MedicalService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []MedicalServiceModel
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find medical services")
	}
	return toDomainServices(models), nil
}

func (r *GormServiceCatalogRepository) SeedIfEmpty(ctx context.Context, services []domain.MedicalService) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MedicalServiceModel{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "count medical services")
	}
	if count > 0 || len(services) == 0 {
		return 0, nil
	}

	models := make([]MedicalServiceModel, 0, len(services))
	for _, s := range services {
		models = append(models, MedicalServiceModel{
			ID:          s.ID,
			Name:        s.Name,
			Price:       s.Price,
			Gender:      string(s.Gender),
			Description: s.Description,
			IsActive:    s.IsActive,
		})
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return 0, errors.Wrap(err, "seed medical services")
	}
	return len(models), nil
}

func toDomainServices(models []MedicalServiceModel) []domain.MedicalService {
	out := make([]domain.MedicalService, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainMedicalService(m))
	}
	return out
}
