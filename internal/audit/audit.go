package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Recorder appends audit entries for account state transitions and terminal
// failures. Entries are append-only; a write failure is logged but never
// fails the operation being audited.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a new audit recorder with the given database connection
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one audit entry.
func (r *Recorder) Record(owner, action, detail string, success bool) {
	entry := types.AuditEntry{
		EntryID:      uuid.New().String(),
		OwnerAddress: owner,
		Action:       action,
		Detail:       detail,
		Success:      success,
		CreatedAt:    time.Now(),
	}

	if err := r.db.Create(&entry).Error; err != nil {
		log.Error().
			Err(err).
			Str("owner_address", owner).
			Str("action", action).
			Msg("failed to write audit entry")
	}
}

// Entries returns the audit trail for one account, oldest first.
func (r *Recorder) Entries(owner string) ([]types.AuditEntry, error) {
	var entries []types.AuditEntry
	if err := r.db.Where("owner_address = ?", owner).Order("id asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
