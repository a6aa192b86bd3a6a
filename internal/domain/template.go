package domain

import "time"

// Template is a reusable message body.
type Template struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
}
