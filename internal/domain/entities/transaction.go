package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
)

// Transaction is the authoritative payment fact.
//
// Invariants enforced elsewhere in the system, not by this struct alone:
// I1 (non-negative amount) and I2 (3-letter currency) by pkg/money.New at
// construction time; I3 (providerRef immutable once set), I4 (status only
// moves along C3-allowed edges), I5 (monotonic verification confidence) and
// I6 (terminal statuses admit no further transition) are all enforced by
// the Storage Port's locked update path plus the state machine.
type Transaction struct {
	ID                 uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ApplicationRef     string              `json:"applicationRef" gorm:"uniqueIndex;not null"`
	Provider           string              `json:"provider" gorm:"index:idx_provider_ref,priority:1;not null"`
	ProviderRef        null.String         `json:"providerRef,omitempty" gorm:"index:idx_provider_ref,priority:2"`
	Status             TransactionStatus   `json:"status" gorm:"index;not null"`
	Amount             int64               `json:"amount" gorm:"not null"`
	Currency           string              `json:"currency" gorm:"type:char(3);not null"`
	VerificationMethod VerificationMethod  `json:"verificationMethod" gorm:"not null"`
	Metadata           datatypes.JSON      `json:"metadata,omitempty"`
	ProviderCreatedAt  *time.Time          `json:"providerCreatedAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Version            int64               `json:"version" gorm:"default:1"`
}

func (Transaction) TableName() string { return "transactions" }

// WebhookLog is the append-only record of every inbound claim.
//
// I7 (exactly one eventual fate), I8 (transactionId set at most once) and I9
// (the provider+providerEventId index) are enforced respectively by the
// pipeline processor always finalizing a ProcessingStatus, by the
// persist-claim/state-engine stages only linking once, and by the unique
// index declared in the migration helper.
type WebhookLog struct {
	ID                   uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider             string           `json:"provider" gorm:"not null"`
	ProviderEventID      null.String      `json:"providerEventId,omitempty" gorm:"index"`
	EventType            string           `json:"eventType"`
	RawPayload           datatypes.JSON   `json:"rawPayload"`
	Headers              datatypes.JSON   `json:"headers"`
	SignatureValid       bool             `json:"signatureValid"`
	ProcessingStatus     ProcessingStatus `json:"processingStatus" gorm:"not null"`
	ReceivedAt           time.Time        `json:"receivedAt" gorm:"not null"`
	ProcessingDurationMs int64            `json:"processingDurationMs"`
	TransactionID        *uuid.UUID       `json:"transactionId,omitempty" gorm:"index"`
	NormalizedEvent      datatypes.JSON   `json:"normalizedEvent,omitempty"`
	ErrorMessage         null.String      `json:"errorMessage,omitempty"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }

// AuditLog is the append-only transition record (I10, I11).
type AuditLog struct {
	ID                   uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TransactionID        uuid.UUID           `json:"transactionId" gorm:"index;not null"`
	FromStatus           *TransactionStatus  `json:"fromStatus,omitempty"`
	ToStatus             TransactionStatus   `json:"toStatus" gorm:"not null"`
	TriggerType          TriggerType         `json:"triggerType" gorm:"not null"`
	WebhookLogID         *uuid.UUID          `json:"webhookLogId,omitempty"`
	ReconciliationResult null.String         `json:"reconciliationResult,omitempty"`
	VerificationMethod   *VerificationMethod `json:"verificationMethod,omitempty"`
	Actor                string              `json:"actor"`
	Reason               string              `json:"reason"`
	Metadata             datatypes.JSON      `json:"metadata,omitempty"`
	CreatedAt            time.Time           `json:"createdAt" gorm:"index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// DispatchLog is the per-handler invocation record.
type DispatchLog struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TransactionID *uuid.UUID     `json:"transactionId,omitempty"`
	WebhookLogID  *uuid.UUID     `json:"webhookLogId,omitempty"`
	EventType     string         `json:"eventType"`
	HandlerName   string         `json:"handlerName"`
	Status        DispatchStatus `json:"status"`
	AttemptedAt   time.Time      `json:"attemptedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	DurationMs    int64          `json:"durationMs"`
	Error         null.String    `json:"error,omitempty"`
	RetryCount    int            `json:"retryCount"`
	IsReplay      bool           `json:"isReplay"`
}

func (DispatchLog) TableName() string { return "dispatch_logs" }

// OutboxEvent is a deferred, guaranteed-delivery unit (I12-I14).
type OutboxEvent struct {
	ID            uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AggregateID   uuid.UUID           `json:"aggregateId" gorm:"index"`
	AggregateType string              `json:"aggregateType"`
	EventType     NormalizedEventType `json:"eventType"`
	Payload       datatypes.JSON      `json:"payload"`
	Status        OutboxStatus        `json:"status" gorm:"index"`
	RetryCount    int                 `json:"retryCount"`
	MaxRetries    int                 `json:"maxRetries"`
	ScheduledFor  time.Time           `json:"scheduledFor" gorm:"index"`
	ProcessedAt   *time.Time          `json:"processedAt,omitempty"`
	Error         null.String         `json:"error,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
