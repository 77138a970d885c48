package handler

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storeline-pos/internal/database/models"
)

// ApprovalBlock carries the second-actor credential attached to an
// out-of-policy action.
type ApprovalBlock struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

// verifySupervisor checks an approval block against the stored bcrypt PIN
// hash. Returns the supervisor username on success, empty string otherwise.
func (s *POSHandler) verifySupervisor(tx *gorm.DB, approval *ApprovalBlock) (string, error) {
	if approval == nil || approval.Username == "" || approval.PIN == "" {
		return "", nil
	}

	var supervisor models.Supervisor
	err := tx.Where("username = ? AND is_active = ?", approval.Username, true).
		First(&supervisor).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(supervisor.PINHash), []byte(approval.PIN)) != nil {
		return "", nil
	}
	return supervisor.Username, nil
}
