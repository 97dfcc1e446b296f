package response

// Response represents the standard API response envelope
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Paged wraps a list payload with pagination totals
type Paged struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// SuccessPaged returns a success response for paginated list endpoints
func SuccessPaged(statusCode int, data interface{}, total int64, page, limit int) Paged {
	return Paged{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
	}
}
