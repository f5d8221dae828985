// Package domain models weather observations, their provenance, and the
// conversions shared by the ingestion adapters and the forecaster.
//
// # Provenance
//
// Every WeatherRecord carries exactly one Source tag:
//
//	API          hourly history from the Open-Meteo archive API
//	MANUAL       a reading typed into the dashboard form
//	AGENCY_FEED  BMKG DigitalForecast slots (6-hourly forecast, not observed)
//	CSV_IMPORT   rows from an uploaded spreadsheet export
//	PREDICTION   the forecaster's next-hour temperature
//
// A fresh run of any producer other than MANUAL replaces every earlier record
// with the same tag in a single transaction. MANUAL records accumulate.
// Retention is otherwise unbounded.
//
// # CSV Conventions
//
// Spreadsheet exports name columns inconsistently. Headers are matched
// case-sensitively against a synonym table:
//
//	date, time, timestamp                 → timestamp
//	temp, temp_avg, temperature           → temperature (°C)
//	rh_avg, humidity                      → humidity (%)
//	ws, wind_speed_avg, wind_speed        → wind_speed
//	rr, rain, rainfall                    → rainfall (mm)
//	surface_pressure, pressure            → pressure (hPa)
//
// Pressure, wind speed and rainfall may be absent; they default to 1010.0,
// 0.0 and 0.0. Timestamps without a zone are read as UTC. Day-first dates
// ("02-01-2006") are accepted because agency exports use them.
//
// # Agency Feed Fallback
//
// The agency adapter prefers a named forecast area. When the document has no
// such area it uses the first area instead and logs a warning naming both.
// That keeps the dashboard populated but can show another region's forecast
// under the same AGENCY_FEED tag; treat AGENCY_FEED values as best effort.
// The forecaster never trains on them.
package domain
