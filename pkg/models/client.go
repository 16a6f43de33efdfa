package models

// Client is the subset of a client or lead record the workflow shows alongside an order.
type Client struct {
	ID        string `json:"id"        yaml:"id"`
	Nome      string `json:"nome"      yaml:"nome"`
	Documento string `json:"documento" yaml:"documento"`
	Contato   string `json:"contato"   yaml:"contato"`
	IsLead    bool   `json:"is_lead"   yaml:"is_lead"`
}

// AttachmentRef identifies an uploaded file.
type AttachmentRef struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}
