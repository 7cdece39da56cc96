package entity

import (
	"fmt"
	"time"
)

// UserStatus 用户在线状态
type UserStatus string

const (
	UserStatusAvailable    UserStatus = "available"
	UserStatusBusy         UserStatus = "busy"
	UserStatusAway         UserStatus = "away"
	UserStatusDoNotDisturb UserStatus = "do_not_disturb"
	UserStatusInvisible    UserStatus = "invisible"
	// UserStatusOffline 只用于对外展示，离线由 OnlineUserManager 不存在来表示
	UserStatusOffline UserStatus = "offline"
)

// ParseUserStatus 解析状态字符串，空字符串视为 available
func ParseUserStatus(s string) (UserStatus, error) {
	switch UserStatus(s) {
	case "":
		return UserStatusAvailable, nil
	case UserStatusAvailable, UserStatusBusy, UserStatusAway,
		UserStatusDoNotDisturb, UserStatusInvisible, UserStatusOffline:
		return UserStatus(s), nil
	default:
		return "", fmt.Errorf("unknown user status %q: %w", s, ErrIllegalArgument)
	}
}

// DeviceType 设备类型
type DeviceType string

const (
	DeviceTypeIOS     DeviceType = "ios"
	DeviceTypeAndroid DeviceType = "android"
	DeviceTypeWeb     DeviceType = "web"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeOthers  DeviceType = "others"
)

// Valid 是否为已知设备类型
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceTypeIOS, DeviceTypeAndroid, DeviceTypeWeb, DeviceTypeDesktop, DeviceTypeOthers:
		return true
	}
	return false
}

// Coordinate 经纬度坐标
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Location 最后一次上报的位置
type Location struct {
	Coordinate
	Timestamp time.Time `json:"timestamp"`
}

// StatusCode Connect 的返回码
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusNotResponsible
	StatusServerInternalError
	StatusIllegalArgument
	StatusServerClosing
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusNotResponsible:
		return "NOT_RESPONSIBLE"
	case StatusServerInternalError:
		return "SERVER_INTERNAL_ERROR"
	case StatusIllegalArgument:
		return "ILLEGAL_ARGUMENT"
	case StatusServerClosing:
		return "SERVER_CLOSING"
	}
	return fmt.Sprintf("StatusCode(%d)", int(c))
}

// OnlineUserSnapshot 某一时刻的在线用户快照，交给插件钩子使用
type OnlineUserSnapshot struct {
	UserID  uint64       `json:"user_id"`
	Status  UserStatus   `json:"status"`
	Devices []DeviceType `json:"devices"`
	NodeID  string       `json:"node_id"`
}

// PresenceEvent 上下线事件
type PresenceEvent struct {
	Type       string             `json:"type"` // online, offline
	User       OnlineUserSnapshot `json:"user"`
	DeviceType DeviceType         `json:"device_type"`
	Close      *CloseReason       `json:"close,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

const (
	PresenceEventOnline  = "online"
	PresenceEventOffline = "offline"
)
