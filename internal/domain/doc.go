// Package domain models IMGW meteorological telemetry and the relations the
// analysis pipeline derives from it.
//
// # Data Source
//
// Observations originate from the IMGW public data store
// (https://danepubliczne.imgw.pl), published as monthly zip archives of
// per-day CSV files. Each row carries a station code, a parameter code, a
// timestamp, and a numeric value:
//
//	249200160;B00300S;2024-01-01 00:10;12,5;
//
// Values use either "." or "," as the decimal separator depending on the
// export; timestamps are naive local-format strings interpreted as UTC
// throughout this pipeline (see DaylightWindow).
//
// # Parameter Codes
//
// A parameter code identifies a measured quantity, e.g. B00300S is air
// temperature and B00702A is 10-minute mean wind speed. Each parameter is
// analyzed by its own pipeline run; runs share no mutable state.
//
// # Time Reference
//
// All instants in the pipeline live in UTC: observation timestamps are parsed
// as UTC and sunrise/sunset instants are computed in UTC. Day/night
// classification compares UTC to UTC, so daylight-saving transitions in the
// stations' civil zone cannot skew the comparison.
//
// # Relations
//
// Every pipeline stage is a pure function from input relations to a new
// output relation. Entities are value structs and are never mutated after
// creation.
package domain
