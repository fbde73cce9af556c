package timetables

import "embed"

const DefaultBundleName = "timetable.json"

//go:embed timetable.json
var defaultBundle embed.FS
