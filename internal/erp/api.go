package erp

import "production-ops-backend/internal/store"

// ApiResponse models the top-level structure of the ERP feed's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int             `json:"page"`
		PageSize int             `json:"pageSize"`
		Total    int             `json:"total"`
		Items    []store.ErpItem `json:"items"`
	} `json:"data"`
}
