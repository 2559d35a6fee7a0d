package models

import "time"

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token     string     `json:"token"`
	User      User       `json:"user"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

const CredentialsSchema = `{
  "type": "object",
  "required": ["email", "password"],
  "properties": {
    "email":    {"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"},
    "password": {"type": "string", "minLength": 1}
  }
}`

const RegistrationSchema = `{
  "type": "object",
  "required": ["name", "email", "password"],
  "properties": {
    "name":     {"type": "string", "minLength": 1, "maxLength": 100},
    "email":    {"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"},
    "password": {"type": "string", "minLength": 8}
  }
}`
