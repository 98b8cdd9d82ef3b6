package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"padron-sync/internal/feed"
	"padron-sync/internal/models"
)

func setupMemberRepo(t *testing.T) (*MemberRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMemberRepository(db, zap.NewNop()), mock
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newRecord() *models.MemberRecord {
	dob := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &models.MemberRecord{
		CardCode:       "1001",
		HolderCardCode: "1001",
		GivenName:      "JUAN",
		FamilyName:     "PEREZ",
		BirthDate:      &dob,
		Sex:            strPtr(models.SexMale),
		DocumentTypeID: intPtr(1),
		DocumentNumber: strPtr("111"),
		PlanID:         strPtr("plan-activos"),
	}
}

func storedSnapshot() *models.SnapshotRecord {
	dob := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &models.SnapshotRecord{
		MemberID:       "member-1",
		PersonID:       "person-1",
		EnrollmentID:   strPtr("enrollment-1"),
		CardCode:       "1001",
		GivenName:      strPtr("JUAN"),
		FamilyName:     strPtr("PEREZ"),
		Sex:            strPtr(models.SexMale),
		BirthDate:      &dob,
		DocumentTypeID: intPtr(1),
		DocumentNumber: strPtr("111"),
		PlanID:         strPtr("plan-activos"),
		HolderCardCode: strPtr("1001"),
	}
}

func TestInsertMember_FullEntityGraph(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.Phone = strPtr("3411234567")
	rec.Address = &models.Address{
		PostalCode: "2000",
		Street:     "SAN MARTIN",
		Number:     "100",
		CityID:     strPtr("city-1"),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth_role_entity`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO persona \(`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("person-1"))
	mock.ExpectExec(`INSERT INTO persona_documento`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO domicilio`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO persona_domicilio`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO contacto \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO persona_contacto`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan_estado`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertMember(context.Background(), feed.DEMI(), rec)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMember_NoAddressOrContactsForCSS(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	// Present on the record but the feed does not persist them.
	rec.Phone = strPtr("3411234567")
	rec.Address = &models.Address{PostalCode: "2000"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth_role_entity`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO persona \(`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("person-1"))
	mock.ExpectExec(`INSERT INTO persona_documento`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan_estado`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertMember(context.Background(), feed.CSS(), rec)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMember_SkipsEnrollmentWhenPlanUnresolved(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.PlanID = nil

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth_role_entity`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO persona \(`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("person-1"))
	mock.ExpectExec(`INSERT INTO persona_documento`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertMember(context.Background(), feed.CSS(), rec)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMember_RollsBackWholeMemberOnFailure(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth_role_entity`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO persona \(`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.InsertMember(context.Background(), feed.CSS(), newRecord())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert persona")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_OnlyChangedColumns(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.GivenName = "JUAN CARLOS"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE persona SET nombre = \$1 WHERE id = \$2`).
		WithArgs("JUAN CARLOS", "person-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, storedSnapshot())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_AbsentIncomingValueNeverOverwrites(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.GivenName = "JUAN CARLOS"
	rec.DocumentNumber = nil
	rec.BirthDate = nil

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE persona SET nombre = \$1 WHERE id = \$2`).
		WithArgs("JUAN CARLOS", "person-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, storedSnapshot())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_HolderNotFoundIsNotFatal(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.HolderCardCode = "2001"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM afiliado WHERE codigo = \$1 AND id_financiadora = \$2`).
		WithArgs("2001", feed.CSS().FundingSourceID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, storedSnapshot())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_HolderRelinkedByStoredID(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.HolderCardCode = "2001"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM afiliado WHERE codigo = \$1 AND id_financiadora = \$2`).
		WithArgs("2001", feed.CSS().FundingSourceID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("holder-9"))
	mock.ExpectExec(`UPDATE afiliado SET id_afiliado_titular = \$1 WHERE id = \$2`).
		WithArgs("holder-9", "member-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, storedSnapshot())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_PlanTransitionPreservesHistory(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	rec.PlanID = strPtr("plan-pasivos")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO afiliado_plan_estado`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan_estado`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, storedSnapshot())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMember_NoEnrollmentToCloseStillOpensNew(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	rec := newRecord()
	stored := storedSnapshot()
	stored.EnrollmentID = nil
	stored.PlanID = nil

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO afiliado_plan \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO afiliado_plan_estado`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateMember(context.Background(), feed.CSS(), rec, stored)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkHolder_RewritesSelfReference(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	mock.ExpectQuery(`SELECT id FROM afiliado WHERE codigo = \$1 AND id_financiadora = \$2`).
		WithArgs("1001", feed.CSS().FundingSourceID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("holder-1"))
	mock.ExpectExec(`UPDATE afiliado SET id_afiliado_titular = \$1 WHERE codigo = \$2 AND id_financiadora = \$3`).
		WithArgs("holder-1", "1002", feed.CSS().FundingSourceID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.LinkHolder(context.Background(), feed.CSS(), "1002", "1001")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkHolder_UnknownHolderKeepsSelfReference(t *testing.T) {
	repo, mock := setupMemberRepo(t)

	mock.ExpectQuery(`SELECT id FROM afiliado WHERE codigo = \$1 AND id_financiadora = \$2`).
		WithArgs("9999", feed.CSS().FundingSourceID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.LinkHolder(context.Background(), feed.CSS(), "1002", "9999")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
