package dto

import (
	emaildomain "mailsense-backend/internal/email/domain"
)

// EmailsResponse is the paginated email listing payload.
type EmailsResponse struct {
	Emails   []emaildomain.Email `json:"emails"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Total    int64               `json:"total"`
}

// SyncRequest selects what a manual sync run should cover.
type SyncRequest struct {
	Folder string `json:"folder"`
	Limit  int    `json:"limit"`
}
