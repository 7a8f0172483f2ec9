package models

import (
	"time"
)

// Role decides who may message whom: admins talk to clients and clients talk to admins.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// Counterpart is the role a user of role r may message
func (r Role) Counterpart() Role {
	if r == RoleAdmin {
		return RoleClient
	}
	return RoleAdmin
}

// User represents a user in the CRM
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"` // Never send to client
	Avatar       string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	LastSeen     time.Time `json:"lastSeen" bson:"lastSeen"`
}

// UserRegistration contains data needed for user registration
type UserRegistration struct {
	Name     string `json:"name" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5,max=72"`
	Role     Role   `json:"role" binding:"omitempty,oneof=admin client"`
	Avatar   string `json:"avatar" binding:"omitempty,url"`
}

// UserLogin contains data needed for user login
type UserLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is what we return to the client
type UserResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   Role   `json:"role"`
}

// Public strips everything a client must not see
func (u *User) Public() *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}
