package remold

// MigrationPolicy decides when a version migrator runs on decode.
type MigrationPolicy int

const (
	// MigrateOlder runs the migrator only for documents whose version is
	// lower than the type's version.
	MigrateOlder MigrationPolicy = iota

	// MigrateAlways runs the migrator for every document of a versioned type.
	MigrateAlways
)

// config collects option values before an Engine or Serializer is built.
type config struct {
	registry        *Registry
	migration       MigrationPolicy
	inheritVersions bool
	engine          *Engine
}

// Option configures an Engine or Serializer.
type Option func(*config)

// WithRegistry selects the metadata registry. Defaults to DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithMigration selects when migrators run. Defaults to MigrateOlder.
func WithMigration(p MigrationPolicy) Option {
	return func(c *config) {
		c.migration = p
	}
}

// WithInheritedVersions makes types without their own version use the
// nearest ancestor's version record.
func WithInheritedVersions() Option {
	return func(c *config) {
		c.inheritVersions = true
	}
}

// WithEngine makes a Serializer use an existing engine. Other options are
// ignored when an engine is supplied.
func WithEngine(e *Engine) Option {
	return func(c *config) {
		c.engine = e
	}
}

func buildConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.registry == nil {
		c.registry = defaultRegistry
	}
	return c
}
