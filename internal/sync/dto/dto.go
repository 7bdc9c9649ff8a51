package dto

import "mailstream/internal/sync/domain"

type TriggerSyncRequest struct {
	RunType  string `json:"run_type"`
	FolderID string `json:"folder_id"`
}

type TriggerSyncResponse struct {
	AccountID string `json:"account_id"`
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
}

type RunsResponse struct {
	Runs []*domain.SyncRun `json:"runs"`
}

type RetryFailedRequest struct {
	Limit int `json:"limit"`
}

type RetryFailedResponse struct {
	Revived int64 `json:"revived"`
}

type CleanupResponse struct {
	Removed int64 `json:"removed"`
}
