package access

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"yieldvault/internal/models"
)

// LoadGrants builds a grant table from the role_grants table.
func LoadGrants(db *gorm.DB, vault string) (*Grants, error) {
	var rows []models.RoleGrant
	if err := db.Where("vault = ?", vault).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load role grants: %w", err)
	}

	g := NewGrants()
	for _, row := range rows {
		role, err := ParseRole(row.Role)
		if err != nil {
			log.Warnf("skipping role grant %d: %v", row.ID, err)
			continue
		}
		holder, err := solana.PublicKeyFromBase58(row.Address)
		if err != nil {
			log.Warnf("skipping role grant %d: invalid address %s", row.ID, row.Address)
			continue
		}
		g.Grant(role, holder)
	}
	return g, nil
}

// SaveGrant persists a grant so that it survives restarts.
func SaveGrant(db *gorm.DB, vault string, role Role, holder solana.PublicKey) error {
	row := models.RoleGrant{
		Vault:   vault,
		Address: holder.String(),
		Role:    role.String(),
	}
	return db.Where(models.RoleGrant{Vault: vault, Address: row.Address, Role: row.Role}).
		FirstOrCreate(&row).Error
}
