package database

import (
	"context"

	"github.com/rpupo63/portfolio-cms/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AccessLogRepo struct {
	db *gorm.DB
}

func NewAccessLogRepo(db *gorm.DB) *AccessLogRepo {
	return &AccessLogRepo{db}
}

// Add inserts one access log row
func (r *AccessLogRepo) Add(ctx context.Context, entry *models.AccessLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindPage returns one page of logs, most recent first, along with the total row count.
func (r *AccessLogRepo) FindPage(ctx context.Context, page, limit int) ([]models.AccessLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AccessLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := []models.AccessLog{}
	err := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Stats aggregates every log row: total and distinct-IP counts, visits today, visits per
// day over the last days days, and the top most visited paths.
func (r *AccessLogRepo) Stats(ctx context.Context, days, top int) (*models.AccessStats, error) {
	stats := &models.AccessStats{
		DailyVisits: []models.DailyCount{},
		TopPaths:    []models.PathCount{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.logs(gctx).Count(&stats.TotalVisits).Error
	})

	g.Go(func() error {
		return r.logs(gctx).Distinct("ip").Count(&stats.UniqueIPs).Error
	})

	g.Go(func() error {
		return r.logs(gctx).Where("DATE(timestamp) = CURRENT_DATE").Count(&stats.TodayVisits).Error
	})

	g.Go(func() error {
		return r.logs(gctx).
			Select("to_char(DATE(timestamp), 'YYYY-MM-DD') AS day, COUNT(*) AS count").
			Where("timestamp >= CURRENT_DATE - ?::int", days-1).
			Group("day").
			Order("day").
			Scan(&stats.DailyVisits).Error
	})

	g.Go(func() error {
		return r.logs(gctx).
			Select("path, COUNT(*) AS count").
			Group("path").
			Order("count DESC, path").
			Limit(top).
			Scan(&stats.TopPaths).Error
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *AccessLogRepo) logs(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.AccessLog{})
}
