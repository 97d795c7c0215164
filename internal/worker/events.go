package worker

// Topic names shared by publishers and consumers.
const (
	TopicIngestTask = "ingest.task"
	TopicChatTitle  = "chat.title"
)

// IngestTaskPayload is the message published when a document upload or
// re-ingest is requested.
type IngestTaskPayload struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`

	CorrelationID string `json:"correlation_id"`
}

// ChatTitlePayload asks for a session title to be generated from the
// first human message.
type ChatTitlePayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`

	CorrelationID string `json:"correlation_id"`
}
