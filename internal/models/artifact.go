package models

import "time"

// Artifact describes a rendered file in the artifact directory.
type Artifact struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
