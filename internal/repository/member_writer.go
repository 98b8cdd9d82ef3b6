package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"padron-sync/internal/feed"
	"padron-sync/internal/models"
)

// memberRole is the auth_role_entity type for every inserted member.
const memberRole = "afiliado"

// phoneContactType is the contacto.tipo value for phone contacts.
// Email linkage exists in the schema but stays disabled for both feeds.
const phoneContactType = "{LLAMADAS}"

// MemberRepository is the sole mutation path into the member schema.
// Inserts and updates run one transaction per member: a failed member
// rolls back alone and the batch continues.
type MemberRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMemberRepository creates the member writer.
func NewMemberRepository(db *sql.DB, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{
		db:     db,
		logger: logger,
	}
}

// InsertMember creates the full entity set for one new member: role
// entity, person, document, optional domicile and contact, the member
// row itself and the initial plan enrollment with an ACTIVO status row
// dated with the Buenos Aires civil date. All inserts commit together
// or roll back together.
//
// The member is inserted as its own holder; true holder linkage is a
// separate pass (LinkHolder) under feed.HolderResolve.
func (r *MemberRepository) InsertMember(ctx context.Context, f *feed.Feed, rec *models.MemberRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	memberID := uuid.New().String()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth_role_entity (id, type) VALUES ($1, $2)`,
		memberID, memberRole,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth role entity: %w", err)
	}

	var personID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO persona (nombre, apellido, fecha_nacimiento, genero_biologico)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		rec.GivenName, rec.FamilyName, nullableDate(rec.BirthDate), nullable(rec.Sex),
	).Scan(&personID)
	if err != nil {
		return fmt.Errorf("failed to insert persona: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO persona_documento (id, id_persona, id_param_documento_identificatorio, valor)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), personID, nullableInt(rec.DocumentTypeID), nullable(rec.DocumentNumber),
	)
	if err != nil {
		return fmt.Errorf("failed to insert persona documento: %w", err)
	}

	if f.WithAddress && rec.Address != nil {
		if err := r.insertAddress(ctx, tx, personID, rec.Address); err != nil {
			return err
		}
	}

	secret, err := newOTPSecret()
	if err != nil {
		return fmt.Errorf("failed to generate otp secret: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO afiliado (id, id_persona, id_afiliado_titular, codigo, id_financiadora, otp_secret)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		memberID, personID, memberID, rec.CardCode, f.FundingSourceID, secret,
	)
	if err != nil {
		return fmt.Errorf("failed to insert afiliado: %w", err)
	}

	if f.WithContacts && rec.Phone != nil {
		contactID := uuid.New().String()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO contacto (id, valor, tipo) VALUES ($1, $2, $3)`,
			contactID, *rec.Phone, phoneContactType,
		)
		if err != nil {
			return fmt.Errorf("failed to insert contacto: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO persona_contacto (id_persona, id_contacto) VALUES ($1, $2)`,
			personID, contactID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert persona contacto: %w", err)
		}
	}

	if rec.PlanID != nil {
		if err := r.openEnrollment(ctx, tx, memberID, *rec.PlanID); err != nil {
			return err
		}
	} else {
		r.logger.Warn("Member inserted without plan enrollment: plan unresolved",
			zap.String("card", rec.CardCode),
		)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member insert: %w", err)
	}

	return nil
}

func (r *MemberRepository) insertAddress(ctx context.Context, tx *sql.Tx, personID string, addr *models.Address) error {
	addressID := uuid.New().String()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO domicilio (id, codigo_postal, calle, numeracion, piso, departamento, descripcion, id_loc_localidad)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		addressID, addr.PostalCode, addr.Street, addr.Number, addr.Floor, addr.Unit, "NO", nullable(addr.CityID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert domicilio: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO persona_domicilio (id_persona, id_domicilio, es_principal) VALUES ($1, $2, TRUE)`,
		personID, addressID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert persona domicilio: %w", err)
	}

	return nil
}

// openEnrollment appends a new enrollment row and its initial ACTIVO
// status row. Enrollment history is append-only: existing rows are
// never touched here.
func (r *MemberRepository) openEnrollment(ctx context.Context, tx *sql.Tx, memberID, planID string) error {
	enrollmentID := uuid.New().String()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO afiliado_plan (id, id_afiliado, id_financiadora_plan) VALUES ($1, $2, $3)`,
		enrollmentID, memberID, planID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert afiliado plan: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO afiliado_plan_estado (id, id_afiliado_plan, estado, fecha_desde)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), enrollmentID, models.EnrollmentActive, buenosAiresDate(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert afiliado plan estado: %w", err)
	}

	return nil
}

// UpdateMember applies the changed record's genuinely-differing fields
// to the store: partial persona and persona_documento updates, holder
// re-linking when the incoming holder card resolves, and an append-only
// plan transition when the plan changed. No column is ever set to an
// absent incoming value.
func (r *MemberRepository) UpdateMember(ctx context.Context, f *feed.Feed, rec *models.MemberRecord, stored *models.SnapshotRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.updatePersona(ctx, tx, rec, stored); err != nil {
		return err
	}
	if err := r.updateDocument(ctx, tx, rec, stored); err != nil {
		return err
	}
	if err := r.updateHolder(ctx, tx, f, rec, stored); err != nil {
		return err
	}
	if err := r.transitionPlan(ctx, tx, rec, stored); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member update: %w", err)
	}

	return nil
}

func (r *MemberRepository) updatePersona(ctx context.Context, tx *sql.Tx, rec *models.MemberRecord, stored *models.SnapshotRecord) error {
	updates := []string{}
	args := []any{}
	argIdx := 1

	if rec.GivenName != "" && (stored.GivenName == nil || *stored.GivenName != rec.GivenName) {
		updates = append(updates, fmt.Sprintf("nombre = $%d", argIdx))
		args = append(args, rec.GivenName)
		argIdx++
	}
	if rec.FamilyName != "" && (stored.FamilyName == nil || *stored.FamilyName != rec.FamilyName) {
		updates = append(updates, fmt.Sprintf("apellido = $%d", argIdx))
		args = append(args, rec.FamilyName)
		argIdx++
	}
	if rec.Sex != nil && (stored.Sex == nil || *stored.Sex != *rec.Sex) {
		updates = append(updates, fmt.Sprintf("genero_biologico = $%d", argIdx))
		args = append(args, *rec.Sex)
		argIdx++
	}
	if rec.BirthDate != nil && (stored.BirthDate == nil || !sameDate(*rec.BirthDate, *stored.BirthDate)) {
		updates = append(updates, fmt.Sprintf("fecha_nacimiento = $%d", argIdx))
		args = append(args, *rec.BirthDate)
		argIdx++
	}

	if len(updates) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE persona SET %s WHERE id = $%d`, joinUpdates(updates), argIdx)
	args = append(args, stored.PersonID)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}

	return nil
}

func (r *MemberRepository) updateDocument(ctx context.Context, tx *sql.Tx, rec *models.MemberRecord, stored *models.SnapshotRecord) error {
	updates := []string{}
	args := []any{}
	argIdx := 1

	if rec.DocumentNumber != nil && (stored.DocumentNumber == nil || *stored.DocumentNumber != *rec.DocumentNumber) {
		updates = append(updates, fmt.Sprintf("valor = $%d", argIdx))
		args = append(args, *rec.DocumentNumber)
		argIdx++
	}
	if rec.DocumentTypeID != nil && (stored.DocumentTypeID == nil || *stored.DocumentTypeID != *rec.DocumentTypeID) {
		updates = append(updates, fmt.Sprintf("id_param_documento_identificatorio = $%d", argIdx))
		args = append(args, *rec.DocumentTypeID)
		argIdx++
	}

	if len(updates) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE persona_documento SET %s WHERE id_persona = $%d`, joinUpdates(updates), argIdx)
	args = append(args, stored.PersonID)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update persona documento: %w", err)
	}

	return nil
}

// updateHolder re-links the member to the holder named by the incoming
// card code, scoped to the same funding source. When the holder card
// is unknown to the store the existing linkage stays untouched and a
// notice is logged; this is never fatal.
func (r *MemberRepository) updateHolder(ctx context.Context, tx *sql.Tx, f *feed.Feed, rec *models.MemberRecord, stored *models.SnapshotRecord) error {
	if rec.HolderCardCode == "" {
		return nil
	}
	if stored.HolderCardCode != nil && *stored.HolderCardCode == rec.HolderCardCode {
		return nil
	}

	var holderID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM afiliado WHERE codigo = $1 AND id_financiadora = $2`,
		rec.HolderCardCode, f.FundingSourceID,
	).Scan(&holderID)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Holder card not found in store, keeping existing linkage",
				zap.String("card", rec.CardCode),
				zap.String("holder_card", rec.HolderCardCode),
			)
			return nil
		}
		return fmt.Errorf("failed to look up holder: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE afiliado SET id_afiliado_titular = $1 WHERE id = $2`,
		holderID, stored.MemberID,
	)
	if err != nil {
		return fmt.Errorf("failed to update holder linkage: %w", err)
	}

	return nil
}

// transitionPlan closes the current enrollment with an INACTIVO status
// row and appends a fresh enrollment with an ACTIVO row, both dated
// with the Buenos Aires civil date. The prior enrollment row and its
// status history stay untouched.
func (r *MemberRepository) transitionPlan(ctx context.Context, tx *sql.Tx, rec *models.MemberRecord, stored *models.SnapshotRecord) error {
	if rec.PlanID == nil {
		return nil
	}
	if stored.PlanID != nil && *stored.PlanID == *rec.PlanID {
		return nil
	}

	today := buenosAiresDate()

	if stored.EnrollmentID != nil {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO afiliado_plan_estado (id, id_afiliado_plan, estado, fecha_desde)
			 VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), *stored.EnrollmentID, models.EnrollmentInactive, today,
		)
		if err != nil {
			return fmt.Errorf("failed to close previous enrollment: %w", err)
		}
	}

	enrollmentID := uuid.New().String()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO afiliado_plan (id, id_afiliado, id_financiadora_plan) VALUES ($1, $2, $3)`,
		enrollmentID, stored.MemberID, *rec.PlanID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert afiliado plan: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO afiliado_plan_estado (id, id_afiliado_plan, estado, fecha_desde)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), enrollmentID, models.EnrollmentActive, today,
	)
	if err != nil {
		return fmt.Errorf("failed to insert afiliado plan estado: %w", err)
	}

	return nil
}

// LinkHolder resolves a freshly inserted member's true holder card and
// re-links it, used by the HolderResolve policy after the insert batch.
// An unknown holder card leaves the self-reference in place.
func (r *MemberRepository) LinkHolder(ctx context.Context, f *feed.Feed, memberCard, holderCard string) error {
	var holderID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM afiliado WHERE codigo = $1 AND id_financiadora = $2`,
		holderCard, f.FundingSourceID,
	).Scan(&holderID)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Holder card not found in store, keeping self reference",
				zap.String("card", memberCard),
				zap.String("holder_card", holderCard),
			)
			return nil
		}
		return fmt.Errorf("failed to look up holder: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE afiliado SET id_afiliado_titular = $1 WHERE codigo = $2 AND id_financiadora = $3`,
		holderID, memberCard, f.FundingSourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to link holder: %w", err)
	}

	return nil
}

func joinUpdates(updates []string) string {
	out := updates[0]
	for _, u := range updates[1:] {
		out += ", " + u
	}
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

// newOTPSecret generates the per-member opaque secret: base32 of 20
// random bytes.
func newOTPSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.EncodeToString(buf), nil
}

// buenosAiresDate returns today's civil date in Argentina/Buenos Aires,
// independent of the server's local time zone.
func buenosAiresDate() string {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		loc = time.FixedZone("-03", -3*60*60)
	}
	return time.Now().In(loc).Format("2006-01-02")
}
