package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// ValidationRepository implements core.ValidationRepository.
type ValidationRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewValidationRepository(exec dbReadWriter, dialect db.DialectName) *ValidationRepository {
	return &ValidationRepository{exec: exec, dialect: dialect}
}

func (r *ValidationRepository) Insert(ctx context.Context, vr *core.ValidationResult) error {
	if vr.ID == (uuid.UUID{}) {
		vr.ID = core.NewID()
	}
	if err := r.exec.Insert(validationResultToModel(vr)); err != nil {
		return pkderr.DatabaseErr("insert validation result: %v", err)
	}
	return nil
}

func (r *ValidationRepository) LatestForCertificate(ctx context.Context, certID uuid.UUID) (*core.ValidationResult, error) {
	query := db.Paginate(r.dialect, "SELECT * FROM validation_results WHERE CertificateID = ? ORDER BY CreatedAt DESC", 1, 0)
	var m validationResultModel
	err := r.exec.SelectOne(&m, query, certID.String())
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("latest validation result: %v", err)
	}
	return m.toDomain(), nil
}

// ListWithExpiry returns every certificate's latest validation result,
// used by the daily revalidation sweep (spec.md §4.6) to re-check
// validity-period transitions (VALID -> EXPIRED_VALID) without
// re-running signature or revocation checks.
func (r *ValidationRepository) ListWithExpiry(ctx context.Context) ([]*core.ValidationResult, error) {
	rows, err := r.exec.Select(&validationResultModel{},
		"SELECT v.* FROM validation_results v "+
			"INNER JOIN (SELECT CertificateID, MAX(CreatedAt) AS latest FROM validation_results GROUP BY CertificateID) l "+
			"ON v.CertificateID = l.CertificateID AND v.CreatedAt = l.latest")
	if err != nil {
		return nil, pkderr.DatabaseErr("list with expiry: %v", err)
	}
	out := make([]*core.ValidationResult, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*validationResultModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, nil
}

func (r *ValidationRepository) UpdateValidityPeriod(ctx context.Context, id uuid.UUID, valid, currentlyExpired bool, status core.ValidationStatus) error {
	_, err := r.exec.Exec("UPDATE validation_results SET ValidityPeriodValid = ?, CurrentlyExpired = ?, Status = ? WHERE ID = ?",
		boolLiteral(r.dialect, valid), boolLiteral(r.dialect, currentlyExpired), string(status), id.String())
	if err != nil {
		return pkderr.DatabaseErr("update validity period: %v", err)
	}
	return nil
}

var _ core.ValidationRepository = (*ValidationRepository)(nil)
