package models

import "time"

// Attachment describes the profile picture of an account. The image itself
// lives in object storage under StorageKey.
type Attachment struct {
	ID         string
	FileName   string
	URL        string
	StorageKey string
	UploadDate time.Time
	AccountID  string
}
