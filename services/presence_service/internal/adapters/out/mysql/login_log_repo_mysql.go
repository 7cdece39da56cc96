package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// LoginLogModel GORM模型
type LoginLogModel struct {
	ID         string     `gorm:"column:id;type:char(36);primaryKey"`
	UserID     uint64     `gorm:"column:user_id;not null;index:idx_user_login,priority:1"`
	DeviceType string     `gorm:"column:device_type;type:varchar(16);not null"`
	NodeID     string     `gorm:"column:node_id;type:varchar(64);not null"`
	IP         string     `gorm:"column:ip;type:varchar(64)"`
	Longitude  *float64   `gorm:"column:longitude"`
	Latitude   *float64   `gorm:"column:latitude"`
	LoginAt    time.Time  `gorm:"column:login_at;not null;index:idx_user_login,priority:2"`
	LogoutAt   *time.Time `gorm:"column:logout_at"`
}

func (LoginLogModel) TableName() string {
	return "user_login_logs"
}

// LocationLogModel GORM模型
type LocationLogModel struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LoginLogID string    `gorm:"column:login_log_id;type:char(36);index"`
	UserID     uint64    `gorm:"column:user_id;not null;index"`
	DeviceType string    `gorm:"column:device_type;type:varchar(16);not null"`
	Longitude  float64   `gorm:"column:longitude;not null"`
	Latitude   float64   `gorm:"column:latitude;not null"`
	ReportedAt time.Time `gorm:"column:reported_at;not null"`
}

func (LocationLogModel) TableName() string {
	return "user_location_logs"
}

func loginLogModelFromEntity(e *entity.LoginLog) *LoginLogModel {
	m := &LoginLogModel{
		ID:         e.ID,
		UserID:     e.UserID,
		DeviceType: string(e.DeviceType),
		NodeID:     e.NodeID,
		IP:         e.IP,
		LoginAt:    e.LoginAt,
		LogoutAt:   e.LogoutAt,
	}
	if e.Location != nil {
		lng, lat := e.Location.Longitude, e.Location.Latitude
		m.Longitude, m.Latitude = &lng, &lat
	}
	return m
}

// LoginLogRepositoryMySQL MySQL登录日志仓储实现
type LoginLogRepositoryMySQL struct {
	db *gorm.DB
}

func NewLoginLogRepositoryMySQL(db *gorm.DB) out.LoginLogRepository {
	return &LoginLogRepositoryMySQL{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&LoginLogModel{}, &LocationLogModel{})
}

func (r *LoginLogRepositoryMySQL) SaveLogin(ctx context.Context, log *entity.LoginLog) error {
	return r.db.WithContext(ctx).Create(loginLogModelFromEntity(log)).Error
}

func (r *LoginLogRepositoryMySQL) SaveLogout(ctx context.Context, logID string, logoutAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&LoginLogModel{}).
		Where("id = ? AND logout_at IS NULL", logID).
		Update("logout_at", logoutAt).Error
}

func (r *LoginLogRepositoryMySQL) SaveLocation(ctx context.Context, log *entity.LocationLog) error {
	return r.db.WithContext(ctx).Create(&LocationLogModel{
		LoginLogID: log.LoginLogID,
		UserID:     log.UserID,
		DeviceType: string(log.DeviceType),
		Longitude:  log.Coordinate.Longitude,
		Latitude:   log.Coordinate.Latitude,
		ReportedAt: log.ReportedAt,
	}).Error
}
