// Package domain models normalized hazard alerts from government agencies.
//
// # Data Sources
//
// Alerts originate from three families of agency feeds:
//
//	USGS Volcano Hazards Program   JSON API of volcanoes at elevated status
//	NOAA Tsunami Warning Centers   Atom feeds whose entries link to bulletins
//	NOAA Space Weather (SWPC)      JSON array of free-text product messages
//
// Each feed is turned into [Alert] values by a source in the source package.
// This package holds the shared model and the aggregation stage.
//
// # Levels
//
// Severity is normalized to Advisory < Watch < Warning. [LevelOther] means the
// alert is not actionable: a source either drops such alerts or, when the
// source reports cancellations, keeps them with ExpirationDate equal to
// PublishedDate so consumers filtering on expiration treat them as inactive.
//
// Classifiers return a [Classification] (Active, Expired, Rejected) instead of
// overloading [LevelOther]; [Classification.Apply] performs the update.
//
// # Deduplication
//
// UniqueID is a semantic key. Alerts from one source that describe the same
// ongoing event deliberately share it (every SWPC geomagnetic storm watch uses
// "geomagnetic-storm"), so [Normalize] keeps only the newest.
//
// # Time
//
// All timestamps are UTC. Nothing in this package reads the current time;
// callers pass the "since" reference explicitly.
package domain
