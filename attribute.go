package remold

// Attribute names a property of a field rule.
// Use these constants with Registry.SetField and Registry.SetStaticField.
type Attribute string

const (
	// AttrDocumentKey renames the field in the document. Value: string.
	AttrDocumentKey Attribute = "name"

	// AttrCodec sets the value codec. Value: Codec.
	AttrCodec Attribute = "codec"

	// AttrValidator sets the decode-time predicate.
	// Value: Validator, func(any) error or func(any) bool.
	AttrValidator Attribute = "validator"

	// AttrIncluded marks whether the field takes part in documents.
	// Only Registry.MarkExcluded may change it.
	AttrIncluded Attribute = "included"

	// AttrDefault holds the decode value of an excluded field.
	// Only Registry.MarkExcluded may change it.
	AttrDefault Attribute = "default"
)

// TagOption is a codec shortcut accepted after the name in a `doc` tag:
// `doc:"created,date"`.
type TagOption string

const (
	// TagDate selects the Date codec.
	TagDate TagOption = "date"

	// TagText selects the Text codec.
	TagText TagOption = "text"

	// TagJSON selects the JSONConvertible codec.
	TagJSON TagOption = "json"

	// TagUUID selects the UUID codec.
	TagUUID TagOption = "uuid"
)

// knownAttributes contains every attribute a rule carries.
var knownAttributes = map[Attribute]bool{
	AttrDocumentKey: true,
	AttrCodec:       true,
	AttrValidator:   true,
	AttrIncluded:    true,
	AttrDefault:     true,
}

// settableAttributes contains the attributes SetField accepts.
var settableAttributes = map[Attribute]bool{
	AttrDocumentKey: true,
	AttrCodec:       true,
	AttrValidator:   true,
}

// tagCodecs maps tag options to codec constructors.
var tagCodecs = map[TagOption]func() Codec{
	TagDate: Date,
	TagText: Text,
	TagJSON: JSONConvertible,
	TagUUID: UUID,
}

// IsKnownAttribute returns true if a is a rule attribute.
func IsKnownAttribute(a Attribute) bool {
	return knownAttributes[a]
}

// IsSettable returns true if a may be changed through SetField.
func IsSettable(a Attribute) bool {
	return settableAttributes[a]
}

// IsValidTagOption returns true if opt is a known codec shortcut.
func IsValidTagOption(opt TagOption) bool {
	_, ok := tagCodecs[opt]
	return ok
}
