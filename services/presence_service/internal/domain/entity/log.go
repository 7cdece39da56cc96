package entity

import "time"

// LoginLog 登录日志，登出时回填 LogoutAt
type LoginLog struct {
	ID         string     `json:"id"`
	UserID     uint64     `json:"user_id"`
	DeviceType DeviceType `json:"device_type"`
	NodeID     string     `json:"node_id"`
	IP         string     `json:"ip"`
	Location   *Location  `json:"location,omitempty"`
	LoginAt    time.Time  `json:"login_at"`
	LogoutAt   *time.Time `json:"logout_at,omitempty"`
}

// LocationLog 位置上报日志
type LocationLog struct {
	LoginLogID string     `json:"login_log_id"`
	UserID     uint64     `json:"user_id"`
	DeviceType DeviceType `json:"device_type"`
	Coordinate Coordinate `json:"coordinate"`
	ReportedAt time.Time  `json:"reported_at"`
}
