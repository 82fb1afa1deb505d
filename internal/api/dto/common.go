package dto

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status            string `json:"status"`
	NextInvoiceNumber int64  `json:"next_invoice_number,omitempty"`
}
