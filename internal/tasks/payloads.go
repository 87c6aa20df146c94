package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFExport = "pdf:export"
)

// PDFExportPayload 描述导出 PDF 所需的最小信息。
// DocType 取 "CV" 或 "CL"，与模板骨架的命名保持一致。
type PDFExportPayload struct {
	SessionKey    string `json:"session_key"`
	DocType       string `json:"doc_type"`
	EmailTo       string `json:"email_to,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFExportTask 构造一个新的文档导出任务。
func NewPDFExportTask(sessionKey, docType, emailTo, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFExportPayload{
		SessionKey:    sessionKey,
		DocType:       docType,
		EmailTo:       emailTo,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFExport, payload), nil
}
