package models

import "time"

type User struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (u User) GetID() string { return u.ID }

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const UserSchema = `{
  "type": "object",
  "required": ["name", "email", "role"],
  "properties": {
    "name":  {"type": "string", "minLength": 1, "maxLength": 100},
    "email": {"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"},
    "role":  {"type": "string", "enum": ["customer", "admin"]}
  }
}`
