// Package schema holds the property schemas known to the search subsystem.
//
// A Schema names the fields a view kind exposes to criteria, which of them
// participate in free-text search, and which carry the alphabetical
// jump-bar buckets. Criteria referencing fields outside the schema are
// dropped silently to tolerate schema drift between client and server.
package schema

// Field is a resolvable property reference.
type Field struct {
	name string
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Schema is an immutable field registry for one view kind.
type Schema struct {
	name     string
	fields   map[string]Field
	freeText []Field
	bucket   []Field
	date     string
}

// New creates a schema. freeText and bucket must be subsets of fields.
func New(name string, fields, freeText, bucket []string, dateField string) Schema {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f] = Field{name: f}
	}
	return Schema{
		name:     name,
		fields:   m,
		freeText: resolveAll(m, freeText),
		bucket:   resolveAll(m, bucket),
		date:     dateField,
	}
}

func resolveAll(m map[string]Field, names []string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		if f, ok := m[n]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Name returns the schema name.
func (s Schema) Name() string { return s.name }

// Resolve maps a client field name to a Field. Unknown names report false.
func (s Schema) Resolve(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// FreeTextFields returns the fields searched by free-text terms.
func (s Schema) FreeTextFields() []Field { return s.freeText }

// BucketFields returns the fields restricted by jump-bar buckets.
func (s Schema) BucketFields() []Field { return s.bucket }

// DateField returns the field date ranges apply to, or "" if none.
func (s Schema) DateField() string { return s.date }

// Contacts is the address-book schema: free text covers the name and email
// variants, buckets run over file-as and display name plus email variants.
func Contacts() Schema {
	return New(
		"contacts",
		[]string{
			"display_name", "fileas", "given_name", "surname", "company",
			"email_address_1", "email_address_2", "email_address_3",
			"home_phone", "business_phone", "mobile_phone",
		},
		[]string{
			"display_name", "fileas", "given_name", "surname", "company",
			"email_address_1", "email_address_2", "email_address_3",
		},
		[]string{
			"fileas", "display_name",
			"email_address_1", "email_address_2", "email_address_3",
		},
		"",
	)
}

// Mail is the message-list schema: free text covers subject and
// correspondents, buckets are unused (mail lists have no jump bar).
func Mail() Schema {
	return New(
		"mail",
		[]string{
			"subject", "sender_name", "sender_email",
			"display_to", "display_cc", "body_preview", "message_date",
		},
		[]string{"subject", "sender_name", "sender_email", "display_to", "display_cc"},
		nil,
		"message_date",
	)
}

// ByName returns a built-in schema by name.
func ByName(name string) (Schema, bool) {
	switch name {
	case "contacts":
		return Contacts(), true
	case "mail":
		return Mail(), true
	default:
		return Schema{}, false
	}
}
