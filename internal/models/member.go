package models

import (
	"time"
)

// Biological sex codes as stored in persona.genero_biologico.
const (
	SexMale     = "MASCULINO"
	SexFemale   = "FEMENINO"
	SexIntersex = "INTERSEXUAL"
)

// Plan enrollment status codes as stored in afiliado_plan_estado.estado.
const (
	EnrollmentActive   = "ACTIVO"
	EnrollmentInactive = "INACTIVO"
)

// Address carries the optional domicile fields of an extract row.
// CityID is the resolved loc_localidad surrogate, nil when the raw
// city name could not be matched.
type Address struct {
	PostalCode string
	Street     string
	Number     string
	Floor      string
	Unit       string
	CityID     *string
}

// MemberRecord is the canonical, store-schema-agnostic representation
// of one incoming member row after normalization. Optional fields are
// pointers; nil means the source had no usable value.
type MemberRecord struct {
	CardCode       string
	HolderCardCode string
	HolderName     string
	GivenName      string
	FamilyName     string
	BirthDate      *time.Time
	Sex            *string
	DocumentTypeID *int
	DocumentNumber *string
	PlanID         *string
	Phone          *string
	Email          *string
	Address        *Address
}

// SnapshotRecord mirrors MemberRecord from the target store side: one
// row per (member, plan, document) joined view, carrying the internal
// surrogate identifiers needed by the update path. Holder card code and
// name are denormalized via a self-join on afiliado.id_afiliado_titular.
type SnapshotRecord struct {
	MemberID       string
	PersonID       string
	EnrollmentID   *string
	CardCode       string
	GivenName      *string
	FamilyName     *string
	Sex            *string
	BirthDate      *time.Time
	DocumentTypeID *int
	DocumentNumber *string
	PlanID         *string
	PlanName       *string
	HolderCardCode *string
	HolderName     *string
}
