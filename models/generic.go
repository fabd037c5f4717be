package models

type RowError struct {
	Message string `json:"message"`
	Row     int    `json:"row"`
}

type BatchDeleteRequest struct {
	Data []string `json:"data"`
}

type RowResponseError struct {
	Message string     `json:"message"`
	Detail  []RowError `json:"detail"`
}

// RowResult reports the outcome of one item of a partial-success batch.
type RowResult struct {
	Row     int    `json:"row"`
	Id      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
