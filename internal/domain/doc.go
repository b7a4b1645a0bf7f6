// Package domain models the station climate catalog and the series artifact
// produced for each station.
//
// # Data Source
//
// Daily series come from the European Climate Assessment & Dataset (ECA&D)
// blended archives, one zip per measurement (for example ECA_blend_tx.zip for
// daily maximum temperature). Each archive holds:
//
//	stations.txt   station listing (STAID, STANAME, CN, LAT, LON, HGHT)
//	elements.txt   element codes with description and "factor unit" column
//	sources.txt    source listing (SOUID, ELEID, PARNAME, ...)
//	TX_STAID*.txt  one series file per station (STAID, SOUID, DATE, TX, Q_TX)
//
// The first line of every file carries the publish date:
//
//	"EUROPEAN CLIMATE ASSESSMENT & DATASET (ECA&D), file created on 20-09-2024"
//
// # ECA&D Conventions
//
// Coordinates are sexagesimal "+DD:MM:SS". The sign belongs to the whole
// angle, so "-03:30:00" is -3.5 degrees, not -2.5.
//
// Raw readings are integers. The element catalog gives the scale factor, so a
// TX reading of 215 with factor "0.1 C" is 21.5 degrees Celsius.
//
// Quality codes:
//
//	0 valid | 1 suspect | 9 missing
//
// Only quality 0 rows contribute to windows, series and averages.
//
// # Element Priority
//
// Several instruments can report the same quantity at a station. Each
// Measurement keeps an ordered preference list of element codes; the position
// of a code in that list is its [Rank]. Lower is better and codes outside the
// list are unranked.
package domain
