package records

import (
	"fmt"

	"github.com/miamirp/cityrecords/pkg/rbac"
)

func str(name, column string, required bool) Field {
	return Field{Name: name, Column: column, Type: TypeString, Required: required}
}

func flag(name, column string, def bool) Field {
	return Field{Name: name, Column: column, Type: TypeBool, Default: def}
}

func ref(name, column string, kind rbac.Kind) Field {
	return Field{Name: name, Column: column, Type: TypeInt, Required: true, Ref: kind}
}

var schemas = map[rbac.Kind]*Schema{
	rbac.KindCitizen: {
		Kind:  rbac.KindCitizen,
		Table: "citizens",
		Generated: []Field{
			{Name: "citizenId", Column: "citizen_id", Type: TypeString, Unique: true},
		},
		Fields: []Field{
			str("firstName", "first_name", true),
			str("lastName", "last_name", true),
			str("dateOfBirth", "date_of_birth", true),
			str("phone", "phone", false),
			str("email", "email", false),
			str("address", "address", false),
			str("photoUrl", "photo_url", false),
			flag("isWanted", "is_wanted", false),
			str("wantedReason", "wanted_reason", false),
			flag("isAmber", "is_amber", false),
			flag("isDeceased", "is_deceased", false),
			str("immigrationStatus", "immigration_status", false),
			flag("taxFraudFlag", "tax_fraud_flag", false),
		},
		Search: []string{"firstName", "lastName", "citizenId", "phone", "email"},
	},
	rbac.KindVehicle: {
		Kind:  rbac.KindVehicle,
		Table: "vehicles",
		Fields: []Field{
			{Name: "licensePlate", Column: "license_plate", Type: TypeString, Required: true, Unique: true},
			str("make", "make", true),
			str("model", "model", true),
			{Name: "year", Column: "year", Type: TypeInt, Required: true},
			str("color", "color", true),
			str("type", "type", true),
			str("modifications", "modifications", false),
			{Name: "vin", Column: "vin", Type: TypeString, Unique: true},
			ref("ownerId", "owner_id", rbac.KindCitizen),
			flag("isRegistered", "is_registered", true),
			str("registrationExpires", "registration_expires", false),
			flag("isStolen", "is_stolen", false),
		},
		Search: []string{"licensePlate", "make", "model", "color", "vin"},
	},
	rbac.KindDriverLicense: {
		Kind:  rbac.KindDriverLicense,
		Table: "driver_licenses",
		Fields: []Field{
			{Name: "licenseNumber", Column: "license_number", Type: TypeString, Required: true, Unique: true},
			ref("citizenId", "citizen_id", rbac.KindCitizen),
			flag("isValid", "is_valid", true),
			str("expiresAt", "expires_at", false),
			str("restrictions", "restrictions", false),
		},
		Search: []string{"licenseNumber", "restrictions"},
	},
	rbac.KindBusiness: {
		Kind:  rbac.KindBusiness,
		Table: "businesses",
		Fields: []Field{
			str("businessName", "business_name", true),
			{Name: "businessLicense", Column: "business_license", Type: TypeString, Required: true, Unique: true},
			ref("ownerId", "owner_id", rbac.KindCitizen),
			str("type", "type", true),
			str("address", "address", true),
			flag("isActive", "is_active", true),
		},
		Search: []string{"businessName", "businessLicense", "type", "address"},
	},
	rbac.KindProperty: {
		Kind:  rbac.KindProperty,
		Table: "properties",
		Fields: []Field{
			str("address", "address", true),
			ref("ownerId", "owner_id", rbac.KindCitizen),
			str("type", "type", true),
			flag("isOwned", "is_owned", true),
			{Name: "marketValue", Column: "market_value", Type: TypeInt},
		},
		Search: []string{"address", "type"},
	},
	rbac.KindPermit: {
		Kind:  rbac.KindPermit,
		Table: "permits",
		Fields: []Field{
			{Name: "permitNumber", Column: "permit_number", Type: TypeString, Required: true, Unique: true},
			str("permitType", "permit_type", true),
			ref("citizenId", "citizen_id", rbac.KindCitizen),
			flag("isValid", "is_valid", true),
			str("expiresAt", "expires_at", false),
		},
		Search:   []string{"permitNumber", "permitType"},
		IssuedAt: true,
	},
	rbac.KindCriminalRecord: {
		Kind:  rbac.KindCriminalRecord,
		Table: "criminal_records",
		Fields: []Field{
			ref("citizenId", "citizen_id", rbac.KindCitizen),
			str("crimeType", "crime_type", true),
			str("description", "description", false),
			str("dateOfCrime", "date_of_crime", true),
			str("status", "status", true),
			{Name: "fine", Column: "fine", Type: TypeInt},
			flag("isPaid", "is_paid", false),
			str("jailTime", "jail_time", false),
			str("courtDate", "court_date", false),
		},
		Search: []string{"crimeType", "description", "status"},
	},
}

// SchemaFor returns the schema of a record kind. User is not a record kind;
// accounts are validated by ValidateUser.
func SchemaFor(kind rbac.Kind) (*Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// MustSchema is SchemaFor for kinds known at compile time.
func MustSchema(kind rbac.Kind) *Schema {
	s, ok := schemas[kind]
	if !ok {
		panic(fmt.Sprintf("records: no schema for kind %q", kind))
	}
	return s
}

// RecordKinds lists the record kinds in route order.
func RecordKinds() []rbac.Kind {
	out := make([]rbac.Kind, 0, len(schemas))
	for _, k := range rbac.AllKinds {
		if _, ok := schemas[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CitizenChildren lists the kinds readable under /api/citizens/{id}/...,
// each linked to the citizen by its Citizen reference field.
func CitizenChildren() []rbac.Kind {
	out := make([]rbac.Kind, 0, 6)
	for _, k := range RecordKinds() {
		if _, ok := schemas[k].RefField(rbac.KindCitizen); ok {
			out = append(out, k)
		}
	}
	return out
}
