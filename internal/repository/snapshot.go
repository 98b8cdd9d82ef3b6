package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"padron-sync/internal/models"
)

// SnapshotRepository reads the current stored state of one funding
// source's members as a joined view. Reads only; built fresh each run.
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Load queries the joined member view for one funding source. The
// holder's card code and name come from a self-join on
// afiliado.id_afiliado_titular. Only open enrollments join in: a plan
// transition closes the old enrollment with an INACTIVO status row, and
// closed enrollments must never resurface as the member's current plan.
// Card codes are canonicalized so they compare type-stably against the
// extract side.
func (r *SnapshotRepository) Load(ctx context.Context, fundingSourceID string) ([]models.SnapshotRecord, error) {
	query := `
		SELECT
			afiliado.id AS id_afi,
			persona.id AS id_persona,
			afiliado_plan.id AS id_afiliado_plan,
			afiliado.codigo,
			persona.nombre,
			persona.apellido,
			persona.genero_biologico,
			persona.fecha_nacimiento,
			persona_documento.id_param_documento_identificatorio,
			persona_documento.valor AS n_documento,
			financiadora_plan.id AS id_financiadora_plan,
			financiadora_plan.nombre AS nombre_plan,
			titular.codigo AS codigo_titular,
			titular_persona.nombre AS nombre_titular
		FROM afiliado
		LEFT JOIN persona ON persona.id = afiliado.id_persona
		LEFT JOIN persona_documento ON persona_documento.id_persona = persona.id
		LEFT JOIN afiliado_plan ON afiliado_plan.id_afiliado = afiliado.id
			AND NOT EXISTS (
				SELECT 1
				FROM afiliado_plan_estado
				WHERE afiliado_plan_estado.id_afiliado_plan = afiliado_plan.id
				  AND afiliado_plan_estado.estado = 'INACTIVO'
			)
		LEFT JOIN financiadora_plan ON financiadora_plan.id = afiliado_plan.id_financiadora_plan
		LEFT JOIN afiliado titular ON titular.id = afiliado.id_afiliado_titular
		LEFT JOIN persona titular_persona ON titular_persona.id = titular.id_persona
		WHERE afiliado.id_financiadora = $1
	`

	rows, err := r.db.QueryContext(ctx, query, fundingSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []models.SnapshotRecord
	for rows.Next() {
		var rec models.SnapshotRecord
		var (
			personID       sql.NullString
			enrollmentID   sql.NullString
			cardCode       sql.NullString
			givenName      sql.NullString
			familyName     sql.NullString
			sex            sql.NullString
			birthDate      sql.NullTime
			documentTypeID sql.NullInt64
			documentNumber sql.NullString
			planID         sql.NullString
			planName       sql.NullString
			holderCard     sql.NullString
			holderName     sql.NullString
		)

		err := rows.Scan(
			&rec.MemberID,
			&personID,
			&enrollmentID,
			&cardCode,
			&givenName,
			&familyName,
			&sex,
			&birthDate,
			&documentTypeID,
			&documentNumber,
			&planID,
			&planName,
			&holderCard,
			&holderName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		rec.PersonID = personID.String
		rec.EnrollmentID = nullString(enrollmentID)
		rec.CardCode = canonicalOrRaw(cardCode.String)
		rec.GivenName = nullString(givenName)
		rec.FamilyName = nullString(familyName)
		rec.Sex = nullString(sex)
		if birthDate.Valid {
			t := birthDate.Time
			rec.BirthDate = &t
		}
		if documentTypeID.Valid {
			n := int(documentTypeID.Int64)
			rec.DocumentTypeID = &n
		}
		rec.DocumentNumber = nullString(documentNumber)
		rec.PlanID = nullString(planID)
		rec.PlanName = nullString(planName)
		if holderCard.Valid {
			c := canonicalOrRaw(holderCard.String)
			rec.HolderCardCode = &c
		}
		rec.HolderName = nullString(holderName)

		snapshot = append(snapshot, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}

	r.logger.Info("Snapshot loaded",
		zap.String("funding_source", fundingSourceID),
		zap.Int("rows", len(snapshot)),
	)

	return snapshot, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

// canonicalOrRaw canonicalizes numeric card codes and keeps anything
// else verbatim; stored codes predating validation may not be numeric.
func canonicalOrRaw(code string) string {
	if canonical, err := models.CanonicalCardCode(code); err == nil {
		return canonical
	}
	return code
}
