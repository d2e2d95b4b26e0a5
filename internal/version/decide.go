package version

// Decision classifies a boot.
type Decision int

const (
	// FirstInstall means no marker was stored. Nothing is purged; the
	// current marker is written.
	FirstInstall Decision = iota
	// NoOp means the stored marker matches the current build.
	NoOp
	// MigrationRequired means the app version changed or the schema
	// counter moved.
	MigrationRequired
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case FirstInstall:
		return "first_install"
	case NoOp:
		return "noop"
	case MigrationRequired:
		return "migration_required"
	default:
		return "unknown"
	}
}

// Reasons reported alongside a Decision.
const (
	ReasonFirstInstall      = "first_install"
	ReasonUnchanged         = "unchanged"
	ReasonAppVersionChanged = "app_version_changed"
	ReasonSchemaUpgraded    = "schema_upgraded"
	ReasonSchemaDowngraded  = "schema_downgraded"
)

// Decide compares the current build against the stored marker. A nil
// stored marker means Absent.
//
// Migration is required when the app versions differ or the schema
// counter increased. A schema counter lower than the stored one is a
// downgrade; it also requires migration since data written by the newer
// schema cannot be trusted by older code.
func Decide(current Marker, stored *Marker) Decision {
	if stored == nil {
		return FirstInstall
	}
	if current.AppVersion != stored.AppVersion || current.SchemaVersion != stored.SchemaVersion {
		return MigrationRequired
	}
	return NoOp
}

// Reason explains Decide's result. App version changes take precedence
// over schema movement.
func Reason(current Marker, stored *Marker) string {
	switch {
	case stored == nil:
		return ReasonFirstInstall
	case current.AppVersion != stored.AppVersion:
		return ReasonAppVersionChanged
	case current.SchemaVersion > stored.SchemaVersion:
		return ReasonSchemaUpgraded
	case current.SchemaVersion < stored.SchemaVersion:
		return ReasonSchemaDowngraded
	default:
		return ReasonUnchanged
	}
}
