package dto

// Envelope is the success body every endpoint returns.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// Page wraps a listing and its pagination.
func Page(data, pagination interface{}) Envelope {
	return Envelope{Success: true, Data: data, Pagination: pagination}
}

// Message is a success envelope without data.
func Message(message string) Envelope {
	return Envelope{Success: true, Message: message}
}
