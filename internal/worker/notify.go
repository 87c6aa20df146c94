package worker

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type ExportNotifyMessage struct {
	Status        string `json:"status"`
	SessionKey    string `json:"session_key"`
	DocType       string `json:"doc_type"`
	PdfKey        string `json:"pdf_key,omitempty"`
	EmailSent     bool   `json:"email_sent"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}
