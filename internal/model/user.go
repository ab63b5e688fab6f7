package model

import (
	"time"
)

// User 用户模型
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null" validate:"required,max=64"`
	Password  string    `json:"-" gorm:"not null"` // bcrypt 哈希，永不序列化
	Email     string    `json:"email" validate:"omitempty,email"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionUser 专门用于页面 Session 存储的用户信息结构
type SessionUser struct {
	ID       uint
	Username string
}

// Session 每个用户一行，重新登录时覆盖
type Session struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	SessionID string    `json:"session_id" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
