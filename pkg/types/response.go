package types

// SuccessEnvelope wraps every 2xx JSON body. Meta is only set on list endpoints.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Meta *ListMeta `json:"meta,omitempty"`
}

// ListMeta reports how many rows were returned and how many existed before ?limit=.
type ListMeta struct {
	Returned  int  `json:"returned"`
	Total     int  `json:"total"`
	Truncated bool `json:"truncated"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
