package postgres

import (
	"context"
	"database/sql"
	"strings"

	"furusatoReco/domain"

	"gorm.io/gorm"
)

// ProfileRepository reads recommendation profiles from the "users" table.
// List columns hold comma-separated values. The engine never writes here.
type ProfileRepository struct {
	DB *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

type profileRow struct {
	ID                  string         `gorm:"column:id"`
	Ceiling             sql.NullInt64  `gorm:"column:furusato_ceiling"`
	Spent               sql.NullInt64  `gorm:"column:furusato_spent"`
	Married             sql.NullBool   `gorm:"column:married"`
	Dependents          sql.NullInt64  `gorm:"column:dependents"`
	PreferredCategories sql.NullString `gorm:"column:preferred_categories"`
	Allergies           sql.NullString `gorm:"column:allergies"`
	CustomRequest       sql.NullString `gorm:"column:custom_request"`
	Liked               sql.NullString `gorm:"column:liked_items"`
	Disliked            sql.NullString `gorm:"column:disliked_items"`
	PastSelections      sql.NullString `gorm:"column:past_selections"`
}

// GetProfile returns the user's context and whether the user exists.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.UserContext, bool, error) {
	var rows []profileRow
	err := r.DB.WithContext(ctx).
		Table("users").
		Select("id, furusato_ceiling, furusato_spent, married, dependents, preferred_categories, allergies, custom_request, liked_items, disliked_items, past_selections").
		Where("id = ?", userID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.UserContext{}, false, err
	}
	if len(rows) == 0 {
		return domain.UserContext{}, false, nil
	}
	return rows[0].toUserContext(), true, nil
}

func (row profileRow) toUserContext() domain.UserContext {
	uc := domain.UserContext{
		UserID:              row.ID,
		PreferredCategories: splitColumn(row.PreferredCategories),
		Allergies:           splitColumn(row.Allergies),
		Liked:               splitColumn(row.Liked),
		Disliked:            splitColumn(row.Disliked),
		PastSelections:      splitColumn(row.PastSelections),
	}
	if row.Ceiling.Valid {
		uc.Ceiling = int(row.Ceiling.Int64)
	}
	if row.Spent.Valid {
		uc.Spent = int(row.Spent.Int64)
	}
	if row.Married.Valid {
		uc.Married = row.Married.Bool
	}
	if row.Dependents.Valid {
		uc.Dependents = int(row.Dependents.Int64)
	}
	if row.CustomRequest.Valid {
		uc.CustomRequest = row.CustomRequest.String
	}
	return uc
}

func splitColumn(v sql.NullString) []string {
	if !v.Valid {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v.String, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
