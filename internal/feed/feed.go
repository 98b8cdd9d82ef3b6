// Package feed defines the per-source parameterization of the
// reconciliation engine. Each funding source ships the same engine with
// its own plan table, document table and insert toggles; the engine
// itself never branches on the feed name.
package feed

// Raw extract column names shared by both feeds.
const (
	ColCardNumber   = "NUMEROTARJETA"
	ColMemberID     = "ID_AFILIADO"
	ColHolderID     = "ID_TITULAR"
	ColFullName     = "APELLIDO_NOMBRE"
	ColBirthDate    = "FECHA_NACIMIENTO"
	ColSex          = "SEXO"
	ColDocumentType = "TIPO_DOCUMENTO"
	ColDocumentNum  = "NUMERODOCUMENTO"
	ColEmail        = "EMAIL"
	ColPhone        = "TELEFONO"
	ColPlanName     = "NOMBRE_PLAN"
	ColProvince     = "PROVINCIA"
	ColCity         = "LOCALIDAD"
	ColPostalCode   = "CODIGO_POSTAL"
	ColStreet       = "CALLE"
	ColStreetNumber = "NUMERO"
	ColFloor        = "PISO"
	ColUnit         = "DEPARTAMENTO"
)

// HolderPolicy selects how freshly inserted members are linked to their
// family holder.
type HolderPolicy string

const (
	// HolderSelf inserts every new member as its own holder and leaves
	// it that way, matching the feeds' historical behavior.
	HolderSelf HolderPolicy = "self"
	// HolderResolve inserts members as their own holder, then re-links
	// each one whose extract row names a different holder card once the
	// whole missing batch is in the store.
	HolderResolve HolderPolicy = "resolve"
)

// Feed is the value object that parameterizes one reconciliation run:
// funding-source scope, static code tables and insert toggles.
type Feed struct {
	Name            string
	FundingSourceID string

	// Plans maps extract plan names to financiadora_plan ids. Lookups
	// are exact and case-sensitive.
	Plans map[string]string

	// DocumentTypes maps extract document type codes to
	// param_documento_identificatorio ids.
	DocumentTypes map[string]int

	// WithAddress inserts domicilio rows for new members.
	WithAddress bool
	// WithContacts inserts phone contacts for new members. Email
	// linkage exists in the schema but stays disabled for both feeds.
	WithContacts bool

	HolderPolicy HolderPolicy

	// Extract acquisition defaults. The bucket export is written with a
	// different delimiter than the flat-file drops; BucketDelimiter zero
	// means the bucket uses Delimiter too.
	SourceFile      string
	FTPDir          string
	BucketPrefix    string
	Delimiter       rune
	BucketDelimiter rune
}

// PlanID resolves an extract plan name; nil when the name is unknown.
func (f *Feed) PlanID(name string) *string {
	if id, ok := f.Plans[name]; ok {
		return &id
	}
	return nil
}

// DocumentTypeID resolves an extract document type code; nil when the
// code is unknown.
func (f *Feed) DocumentTypeID(code string) *int {
	if id, ok := f.DocumentTypes[code]; ok {
		return &id
	}
	return nil
}

// BucketExtractDelimiter returns the delimiter for bucket-sourced
// extracts, falling back to the flat-file delimiter.
func (f *Feed) BucketExtractDelimiter() rune {
	if f.BucketDelimiter != 0 {
		return f.BucketDelimiter
	}
	return f.Delimiter
}

// CSS returns the Caja de Seguridad Social feed definition.
func CSS() *Feed {
	return &Feed{
		Name:            "css",
		FundingSourceID: "ec5b3f64-aaed-4024-959d-f77346f11a01",
		Plans: map[string]string{
			"PLAN ACTIVOS": "d7db3d91-cd65-47b4-8d56-6ba98fb4e005",
			"PLAN PASIVOS": "c59b698b-8f4f-42b6-a36a-a0941f722a4e",
			"CONVENIO DE RECIPROCIDAD - COBERTURA ACTIVOS": "7af213ac-5c6d-4f17-95a8-c634ad0c1a80",
			"CONVENIO DE RECIPROCIDAD - ACTO MEDICO":       "c7a750dd-7250-403c-9542-5e0b90bb5eb9",
			"PENSION A LA VEJEZ DESAMPARADA":               "d395b38d-34c7-4538-a531-3df5132ef4de",
			"AFILIADO EN TRANSITO":                         "76b509c7-f221-4416-a6bb-8c26d44677d2",
			"VIALIDAD":                                     "1c4e365c-ae6d-492f-96c4-20c8543e8c81",
		},
		DocumentTypes: map[string]int{
			"DNI":                          1,
			"CUIL":                         2,
			"CUIT":                         3,
			"PASAPORTE":                    4,
			"CERTIFICADO DE ESTUDIANTE":    5,
			"CERTIFICADO DE PREEXISTENCIA": 6,
			"LE":                           7,
			"LC":                           8,
			"CI":                           9,
			"SIN INFORMAR":                 10,
		},
		WithAddress:     false,
		WithContacts:    false,
		HolderPolicy:    HolderResolve,
		SourceFile:      "CSS-Informe_Afiliados.txt",
		BucketPrefix:    "CSS",
		Delimiter:       '|',
		BucketDelimiter: ',',
	}
}

// DEMI returns the DEMI Salud feed definition.
func DEMI() *Feed {
	return &Feed{
		Name:            "demi",
		FundingSourceID: "69633cef-cd44-4ce2-ae8c-3000b61c6849",
		Plans: map[string]string{
			"AZUL PLUS-VOL-ROS":                   "b60f55eb-c083-416e-a7fa-70657ba4ab81",
			"AZUL PLUS-OBL-ROS":                   "b60f55eb-c083-416e-a7fa-70657ba4ab81",
			"AZUL PLUS- OBLIG-SM":                 "b60f55eb-c083-416e-a7fa-70657ba4ab81",
			"AZUL-COSEGURO A CARGO SOCIO 20,00%":  "96b8c983-7724-414e-88e5-3427d7f43b0a",
			"DEMI OP - OBLIG- SM":                 "a9064b7f-d422-4eac-9eec-e8946f7990aa",
			"DEMI OP - OBLIG- ROS":                "a9064b7f-d422-4eac-9eec-e8946f7990aa",
			"DEMI OP - VOL- SM":                   "a9064b7f-d422-4eac-9eec-e8946f7990aa",
			"DEMI-COSEGURO A CARGO SOCIO 30,00%":  "76b509c7-f221-4416-a6bb-8c26d44677d2",
			"VITALICIO":                           "5f322351-b6a9-4976-902a-a05f75779944",
			"VERDE - OBLIGATORIO":                 "7aec8bd7-22cf-42e0-84a9-2d0e6637a388",
			"PLAN BASICO":                         "5f322351-b6a9-4976-902a-a05f75779944",
			"DS 1000":                             "a1896f07-e202-4c89-be5e-24de5b174014",
		},
		DocumentTypes: map[string]int{
			"DNI": 1,
			"LE":  7,
			"LC":  8,
		},
		WithAddress:  true,
		WithContacts: true,
		HolderPolicy: HolderResolve,
		SourceFile:   "DEMISALUD-Afiliados.txt",
		FTPDir:       "CredencialDigital",
		Delimiter:    '|',
	}
}

// ByName returns the built-in feed definition for name, nil if unknown.
func ByName(name string) *Feed {
	switch name {
	case "css":
		return CSS()
	case "demi":
		return DEMI()
	default:
		return nil
	}
}
